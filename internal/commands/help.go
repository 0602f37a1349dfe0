package commands

import (
	"fmt"
	"strings"
)

// GetHelp renders the help text for a command.
func (b *Bus) GetHelp(commandID string) (string, bool) {
	cmd, ok := b.registry.Get(commandID)
	if !ok {
		return "", false
	}
	return renderHelp(cmd, b.opts.Prefix), true
}

func renderHelp(cmd Command, prefix string) string {
	var sb strings.Builder

	sb.WriteString(cmd.ID)
	sb.WriteString("\n")
	if cmd.Description != "" {
		sb.WriteString(cmd.Description)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Usage: %s%s [options]\n", prefix, cmd.ID)

	if len(cmd.Aliases) > 0 {
		fmt.Fprintf(&sb, "Intent: %s\n", strings.Join(cmd.Aliases, ", "))
	}

	if len(cmd.Args) > 0 {
		sb.WriteString("Arguments:\n")
		for _, arg := range cmd.Args {
			typ := arg.Type
			if typ == "" {
				typ = TypeString
			}
			fmt.Fprintf(&sb, "  --%s <%s>", arg.Name, typ)
			if arg.Required {
				sb.WriteString(" (required)")
			}
			if arg.HasDefault() {
				fmt.Fprintf(&sb, " [default: %s]", stringify(arg.Default))
			}
			if len(arg.Values) > 0 {
				fmt.Fprintf(&sb, " [values: %s]", strings.Join(arg.Values, ", "))
			}
			if arg.Description != "" {
				fmt.Fprintf(&sb, " %s", arg.Description)
			}
			sb.WriteString("\n")
		}
	}

	if len(cmd.Examples) > 0 {
		sb.WriteString("Examples:\n")
		for _, example := range cmd.Examples {
			fmt.Fprintf(&sb, "  %s\n", example)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
