package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cmdbus/internal/commands"
	"cmdbus/internal/listener"
)

func runREPL(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := newHost(ctx, currentConfig(), true)
	if err != nil {
		return err
	}
	defer h.Close()

	return chatLoop(ctx, h, cmd.InOrStdin(), cmd.OutOrStdout(), h.origin(userID, room))
}

// chatLoop feeds lines from in to a listener until EOF, :quit or ctx is
// cancelled. Bus events are printed alongside replies when --events is set.
func chatLoop(ctx context.Context, h *host, in io.Reader, out io.Writer, origin commands.Origin) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := &syncWriter{w: out}
	l := listener.New(h.bus, listener.ReplierFunc(func(ctx context.Context, msg listener.Message, text string) error {
		w.println(renderReply(text))
		return nil
	}))

	// Reads block on the terminal and cannot be interrupted, so the scanner
	// goroutine is left out of the group and simply abandoned on exit.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warn("Input read failed", zap.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if showEvents {
		evs := h.bus.Events().SubscribeChan(0)
		g.Go(func() error {
			defer h.bus.Events().Unsubscribe(evs)
			for {
				select {
				case <-gctx.Done():
					return nil
				case e, ok := <-evs:
					if !ok {
						return nil
					}
					w.println(renderEvent(e))
				}
			}
		})
	}

	g.Go(func() error {
		// Stop the event printer once input is exhausted.
		defer cancel()
		for {
			w.print(renderPrompt(origin))
			var line string
			select {
			case <-gctx.Done():
				return nil
			case next, ok := <-lines:
				if !ok {
					w.println("")
					return nil
				}
				line = next
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, ":") {
				next, quit := h.control(line, origin, w)
				if quit {
					return nil
				}
				origin = next
				continue
			}

			msg := listener.Message{Text: line, User: origin.User, Room: origin.Room}
			handled, err := l.Handle(gctx, msg)
			if err != nil {
				w.println(renderError(err))
				continue
			}
			if !handled {
				w.println(mutedStyle.Render("(no command)"))
			}
		}
	})

	return g.Wait()
}

// control applies a ':' session command and returns the new origin.
func (h *host) control(line string, origin commands.Origin, w *syncWriter) (commands.Origin, bool) {
	fields := strings.Fields(strings.TrimPrefix(line, ":"))
	if len(fields) == 0 {
		return origin, false
	}
	switch fields[0] {
	case "quit", "q", "exit":
		return origin, true
	case "user":
		if len(fields) < 2 {
			w.println(renderError(fmt.Errorf("usage: :user <id>")))
			return origin, false
		}
		next := h.origin(fields[1], origin.Room)
		if len(next.User.Roles) > 0 {
			w.println(mutedStyle.Render(fmt.Sprintf("now %s (%s)", next.User.ID, strings.Join(next.User.Roles, ", "))))
		}
		return next, false
	case "room":
		if len(fields) < 2 {
			w.println(renderError(fmt.Errorf("usage: :room <name>")))
			return origin, false
		}
		origin.Room = fields[1]
		return origin, false
	case "pending":
		if p, ok := h.bus.PendingProposal(origin); ok {
			w.println(mutedStyle.Render(p.Preview))
		} else {
			w.println(mutedStyle.Render("no pending proposal"))
		}
		return origin, false
	default:
		w.println(renderError(fmt.Errorf("unknown session command: %s", fields[0])))
		return origin, false
	}
}

// syncWriter serializes output from the reply and event goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) print(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.w, text)
}

func (s *syncWriter) println(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, text)
}
