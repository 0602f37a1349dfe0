package commands

import (
	"strings"

	"cmdbus/internal/events"
)

// Parse turns invocation text into a command id and raw arguments. The
// first token must be a registered command id; aliases are not consulted.
// It returns nil when the text names no registered command.
//
// Argument values are left as strings (or true for bare flags); coercion
// happens in Validate.
func (b *Bus) Parse(text string) *Parsed {
	body := text
	if b.opts.Prefix != "" {
		body = strings.TrimPrefix(text, b.opts.Prefix)
	}

	tokens := Tokenize(body)
	if len(tokens) == 0 {
		return nil
	}

	cmd, ok := b.registry.Get(tokens[0])
	if !ok {
		return nil
	}

	args := parseArgs(cmd, tokens[1:])
	b.emit(events.Event{
		Type:      events.InvocationParsed,
		CommandID: cmd.ID,
		Args:      args,
	})

	return &Parsed{CommandID: cmd.ID, Args: args, RawText: text}
}

func parseArgs(cmd Command, tokens []string) map[string]any {
	args := make(map[string]any)

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		switch {
		case token == "--":
			if i+1 >= len(tokens) {
				continue
			}
			key := tokens[i+1]
			i++
			if i+1 < len(tokens) && isFlagValue(tokens[i+1]) {
				args[key] = tokens[i+1]
				i++
			} else {
				args[key] = true
			}

		case strings.HasPrefix(token, "--"):
			key := token[2:]
			if arg, ok := cmd.Arg(key); ok && arg.Type == TypeBoolean {
				args[key] = true
				continue
			}
			if i+1 < len(tokens) && isFlagValue(tokens[i+1]) {
				args[key] = tokens[i+1]
				i++
			} else {
				args[key] = true
			}

		case strings.Contains(token, ":"):
			key, value, _ := strings.Cut(token, ":")
			args[key] = value
		}
	}

	return args
}

// isFlagValue reports whether a token following a flag is its value.
func isFlagValue(token string) bool {
	return token != "" && !strings.HasPrefix(token, "--") && !strings.Contains(token, ":")
}
