package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"cmdbus/internal/commands"
)

// BuiltinActions returns the actions every catalog can use.
func BuiltinActions() map[string]Action {
	return map[string]Action{
		"reply": Reply,
	}
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_.-]+)\}`)

// Reply renders params["text"], replacing {name} with the argument of that
// name and {user} / {room} with the invocation origin. Unknown
// placeholders are left as written.
func Reply(ctx context.Context, req commands.Request, params map[string]any) (any, error) {
	text, _ := params["text"].(string)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("reply action requires a text param")
	}

	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := req.Args[name]; ok {
			return fmt.Sprint(v)
		}
		switch name {
		case "user":
			if req.Origin.User.Name != "" {
				return req.Origin.User.Name
			}
			return req.Origin.User.ID
		case "room":
			return req.Origin.Room
		}
		return m
	}), nil
}
