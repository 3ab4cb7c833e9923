package conversation

// Matcher reports whether a route accepts the update.
type Matcher func(Update) bool

// Command matches any of the given slash commands regardless of arguments.
func Command(names ...string) Matcher {
	set := commandSet(names)
	return func(u Update) bool {
		_, ok := set[u.Command]
		return ok && u.Kind() == KindCommand
	}
}

// CommandNoArgs matches the given slash commands only when sent without arguments.
func CommandNoArgs(names ...string) Matcher {
	match := Command(names...)
	return func(u Update) bool {
		return match(u) && len(u.Args) == 0
	}
}

// Text matches free text that is not a command.
func Text() Matcher {
	return func(u Update) bool {
		return u.Kind() == KindText && u.Text != ""
	}
}

// Callback matches inline button presses carrying the given unique key.
func Callback(unique string) Matcher {
	return func(u Update) bool {
		return u.Kind() == KindCallback && u.Callback == unique
	}
}

// Any matches when at least one of the matchers does.
func Any(matchers ...Matcher) Matcher {
	return func(u Update) bool {
		for _, m := range matchers {
			if m != nil && m(u) {
				return true
			}
		}
		return false
	}
}

func commandSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if c := NormalizeCommand(n); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}
