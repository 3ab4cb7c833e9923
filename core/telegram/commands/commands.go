package commands

import (
	"github.com/m3rciful/bookingbot/core/conversation"
)

// Command represents a bot command with its handler, description, and metadata.
// A nil Handler only publishes the command in the menu; conversation entry
// commands are registered that way.
type Command struct {
	Handler     conversation.CommandFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}
