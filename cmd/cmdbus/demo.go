package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cmdbus/internal/commands"
)

// Ticket is a record created by tickets.create.
type Ticket struct {
	ID       int       `json:"id"`
	Title    string    `json:"title"`
	Priority string    `json:"priority"`
	Assignee string    `json:"assignee,omitempty"`
	Due      time.Time `json:"due,omitempty"`
	Reporter string    `json:"reporter"`
}

func (t Ticket) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticket #%d created: %s [%s]", t.ID, t.Title, t.Priority)
	if t.Assignee != "" {
		fmt.Fprintf(&sb, " assigned to %s", t.Assignee)
	}
	if !t.Due.IsZero() {
		fmt.Fprintf(&sb, " due %s", t.Due.Format("2006-01-02"))
	}
	return sb.String()
}

// ticketStore keeps demo tickets in memory.
type ticketStore struct {
	mu      sync.Mutex
	nextID  int
	tickets []Ticket
}

func newTicketStore() *ticketStore {
	return &ticketStore{nextID: 1}
}

func (s *ticketStore) create(t Ticket) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID
	s.nextID++
	s.tickets = append(s.tickets, t)
	return t
}

func (s *ticketStore) list() []Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Ticket(nil), s.tickets...)
}

// registerDemo installs the built-in demo commands.
func registerDemo(bus *commands.Bus, store *ticketStore) error {
	specs := []commands.Spec{
		{
			ID:          "tickets.create",
			Description: "Open a support ticket",
			Aliases:     []string{"create ticket", "open ticket", "new ticket"},
			Examples: []string{
				`tickets.create --title "VPN down" --priority high`,
				"tickets.create title:Printer assignee:alice due:tomorrow",
			},
			Args: []commands.Arg{
				{Name: "title", Type: commands.TypeString, Required: true, Description: "Short summary"},
				{Name: "priority", Type: commands.TypeEnum, Values: []string{"low", "normal", "high"}, Default: "normal"},
				{Name: "assignee", Type: commands.TypeUser, Description: "Who should pick it up"},
				{Name: "due", Type: commands.TypeDate},
			},
			SideEffects: []string{"creates a ticket"},
			Handler: func(ctx context.Context, req commands.Request) (any, error) {
				t := Ticket{
					Title:    fmt.Sprint(req.Args["title"]),
					Priority: fmt.Sprint(req.Args["priority"]),
					Reporter: req.Origin.User.ID,
				}
				if u, ok := req.Args["assignee"].(commands.User); ok {
					t.Assignee = u.Name
				}
				if due, ok := req.Args["due"].(time.Time); ok {
					t.Due = due
				}
				return store.create(t), nil
			},
		},
		{
			ID:          "tickets.list",
			Description: "List open support tickets",
			Aliases:     []string{"list tickets", "show tickets"},
			Examples:    []string{"tickets.list"},
			Confirm:     commands.ConfirmNever,
			Handler: func(ctx context.Context, req commands.Request) (any, error) {
				tickets := store.list()
				if len(tickets) == 0 {
					return "No tickets.", nil
				}
				sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
				lines := make([]string, 0, len(tickets))
				for _, t := range tickets {
					lines = append(lines, fmt.Sprintf("#%d %s [%s]", t.ID, t.Title, t.Priority))
				}
				return strings.Join(lines, "\n"), nil
			},
		},
		{
			ID:          "deploy.run",
			Description: "Deploy a service to an environment",
			Aliases:     []string{"deploy", "ship it"},
			Examples:    []string{"deploy.run service:api env:staging", "deploy.run --service web --env prod --dry-run"},
			Args: []commands.Arg{
				{Name: "service", Type: commands.TypeString, Required: true},
				{Name: "env", Type: commands.TypeEnum, Values: []string{"staging", "prod"}, Required: true},
				{Name: "dry-run", Type: commands.TypeBoolean, Default: false, Description: "Plan without deploying"},
			},
			SideEffects: []string{"deploys code"},
			Confirm:     commands.ConfirmAlways,
			Permissions: commands.Permissions{Roles: []string{"ops", "admin"}},
			Handler: func(ctx context.Context, req commands.Request) (any, error) {
				verb := "Deploying"
				if dry, _ := req.Args["dry-run"].(bool); dry {
					verb = "Planning deploy of"
				}
				return fmt.Sprintf("%s %v to %v for %s", verb, req.Args["service"], req.Args["env"], req.Origin.User.Name), nil
			},
		},
		{
			ID:          "echo",
			Description: "Repeat text back",
			Aliases:     []string{"say"},
			Examples:    []string{"echo text:hello"},
			Args:        []commands.Arg{{Name: "text", Type: commands.TypeString}},
			Confirm:     commands.ConfirmNever,
			Handler: func(ctx context.Context, req commands.Request) (any, error) {
				return req.Args["text"], nil
			},
		},
	}

	for _, spec := range specs {
		if err := bus.Register(spec, commands.RegisterOptions{}); err != nil {
			return fmt.Errorf("failed to register %s: %w", spec.ID, err)
		}
	}
	return nil
}
