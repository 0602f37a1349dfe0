package listener

import (
	"context"
	"fmt"
	"strings"

	"cmdbus/internal/commands"
)

const searchLimit = 5

// RegisterHelp installs a "help" command on bus. With --command it renders
// that command's help, with a query it searches, and otherwise it lists
// every command.
func RegisterHelp(bus *commands.Bus) error {
	prefix := bus.Options().Prefix
	return bus.Register(commands.Spec{
		ID:          "help",
		Description: "Show available commands or search them",
		Aliases:     []string{"help", "what can you do", "list commands"},
		Examples: []string{
			prefix + "help query:ticket",
			prefix + "help --command tickets.create",
		},
		Args: []commands.Arg{
			{Name: "query", Type: commands.TypeString, Description: "words to search for"},
			{Name: "command", Type: commands.TypeString, Description: "command id to describe"},
		},
		Confirm: commands.ConfirmNever,
		Handler: func(ctx context.Context, req commands.Request) (any, error) {
			if id, _ := req.Args["command"].(string); id != "" {
				help, ok := bus.GetHelp(id)
				if !ok {
					return fmt.Sprintf("Unknown command: %s", id), nil
				}
				return help, nil
			}

			if query, _ := req.Args["query"].(string); query != "" {
				results := bus.Search(query, commands.SearchOptions{Limit: searchLimit})
				if len(results) == 0 {
					return fmt.Sprintf("No commands match %q.", query), nil
				}
				lines := make([]string, 0, len(results))
				for _, r := range results {
					lines = append(lines, formatLine(prefix, r.Command))
				}
				return strings.Join(lines, "\n"), nil
			}

			cmds := bus.ListCommands("")
			lines := make([]string, 0, len(cmds))
			for _, cmd := range cmds {
				lines = append(lines, formatLine(prefix, cmd))
			}
			return strings.Join(lines, "\n"), nil
		},
	}, commands.RegisterOptions{})
}

func formatLine(prefix string, cmd commands.Command) string {
	if cmd.Description == "" {
		return prefix + cmd.ID
	}
	return fmt.Sprintf("%s%s: %s", prefix, cmd.ID, cmd.Description)
}
