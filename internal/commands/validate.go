package commands

import (
	"context"
	"fmt"

	"cmdbus/internal/events"
)

// Validate applies defaults, checks required arguments and coerces every
// present argument declared in the command schema. Arguments the schema
// does not declare are kept as given.
func (b *Bus) Validate(ctx context.Context, commandID string, args map[string]any, origin Origin) Validation {
	cmd, ok := b.registry.Get(commandID)
	if !ok {
		return Validation{OK: false, Errors: []string{fmt.Sprintf("Unknown command: %s", commandID)}}
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	var problems, missing []string
	for _, arg := range cmd.Args {
		raw, present := args[arg.Name]
		if !present {
			switch {
			case arg.Required:
				missing = append(missing, arg.Name)
			case arg.HasDefault():
				out[arg.Name] = arg.Default
			}
			continue
		}

		value, err := b.coerce(ctx, raw, arg, origin)
		if err != nil {
			problems = append(problems, fmt.Sprintf("Argument %s: %s", arg.Name, err.Error()))
			continue
		}
		out[arg.Name] = value
	}

	if len(problems) > 0 || len(missing) > 0 {
		b.emit(events.Event{
			Type:      events.ValidationFailed,
			CommandID: cmd.ID,
			UserID:    origin.User.ID,
			Room:      origin.Room,
			Errors:    problems,
			Missing:   missing,
		})
		return Validation{OK: false, Args: out, Errors: problems, Missing: missing}
	}

	return Validation{OK: true, Args: out}
}
