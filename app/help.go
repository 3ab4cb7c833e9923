package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/m3rciful/bookingbot/core/conversation"
	tg "github.com/m3rciful/bookingbot/core/telegram"
	"github.com/m3rciful/bookingbot/core/telegram/commands"
	"github.com/m3rciful/bookingbot/core/telegram/format"
)

const (
	msgAdminOnly = "⛔ This command is available to administrators only."
	msgUnknown   = "🤔 I didn't understand that. Send /help to see what I can do."

	msgStaleButton = "⌛ This button is no longer active."
)

func registerHelp(reg *tg.Registry, maxFileMB int) {
	reg.RegisterCommand("/help", commands.Command{
		Description: "Show this help message",
		Handler: func(context.Context, conversation.Update) []conversation.Message {
			return []conversation.Message{conversation.ReplyMD(helpText(reg, maxFileMB))}
		},
	})
}

func helpText(reg *tg.Registry, maxFileMB int) string {
	var b strings.Builder
	b.WriteString("🤖 *Booking & Music Bot*\n\nAvailable commands:\n\n")
	for _, cmd := range reg.ListCommands(true) {
		fmt.Fprintf(&b, "*%s* - %s\n", format.Markdown(cmd.Text), format.Markdown(cmd.Description))
	}
	b.WriteString("\nTo book an appointment send /start and follow the prompts.\n")
	b.WriteString("To download music send /download, then a YouTube URL.\n\n")
	fmt.Fprintf(&b, "Note: Maximum file size limit is %dMB", maxFileMB)
	return b.String()
}

func registerStats(reg *tg.Registry, counts func() map[string]int) {
	reg.RegisterCommand("/stats", commands.Command{
		Description: "Active conversations per flow",
		AdminOnly:   true,
		Handler: func(context.Context, conversation.Update) []conversation.Message {
			return []conversation.Message{conversation.Reply(statsText(counts()))}
		},
	})
}

func statsText(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("📊 Active conversations\n")
	total := 0
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %d\n", name, counts[name])
		total += counts[name]
	}
	fmt.Fprintf(&b, "total: %d", total)
	return b.String()
}
