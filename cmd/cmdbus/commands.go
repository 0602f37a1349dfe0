package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cmdbus/internal/commands"
	"cmdbus/internal/config"
	"cmdbus/internal/listener"
)

func runInvoke(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	h, err := newHost(ctx, currentConfig(), false)
	if err != nil {
		return err
	}
	defer h.Close()

	text := joinArgs(args)
	origin := h.origin(userID, room)
	out := cmd.OutOrStdout()

	l := listener.New(h.bus, listener.ReplierFunc(func(ctx context.Context, msg listener.Message, reply string) error {
		fmt.Fprintln(out, reply)
		return nil
	}))
	msg := listener.Message{Text: text, User: origin.User, Room: origin.Room}

	handled, err := l.Handle(ctx, msg)
	if err != nil {
		return err
	}
	if !handled {
		return fmt.Errorf("%w: %s", commands.ErrCommandNotFound, firstWord(text))
	}

	if _, pending := h.bus.PendingProposal(origin); pending && autoConfirm {
		logger.Debug("Auto-confirming proposal", zap.String("key", origin.ConfirmationKey()))
		msg.Text = "yes"
		if _, err := l.Handle(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	h, err := newHost(context.Background(), currentConfig(), false)
	if err != nil {
		return err
	}
	defer h.Close()

	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	out := cmd.OutOrStdout()
	list := h.bus.ListCommands(prefix)
	if len(list) == 0 {
		fmt.Fprintln(out, "No commands.")
		return nil
	}
	for _, c := range list {
		fmt.Fprintln(out, renderCommand(c))
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	h, err := newHost(context.Background(), currentConfig(), false)
	if err != nil {
		return err
	}
	defer h.Close()

	out := cmd.OutOrStdout()
	results := h.bus.Search(strings.Join(args, " "), commands.SearchOptions{Limit: searchLimit})
	if len(results) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}
	for _, r := range results {
		fmt.Fprintln(out, renderSearchResult(r))
	}
	return nil
}

func runDescribe(cmd *cobra.Command, args []string) error {
	h, err := newHost(context.Background(), currentConfig(), false)
	if err != nil {
		return err
	}
	defer h.Close()

	help, ok := h.bus.GetHelp(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", commands.ErrCommandNotFound, args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), help)
	return nil
}

func runCollisions(cmd *cobra.Command, args []string) error {
	h, err := newHost(context.Background(), currentConfig(), false)
	if err != nil {
		return err
	}
	defer h.Close()

	out := cmd.OutOrStdout()
	collisions := h.bus.AliasCollisions()
	if len(collisions) == 0 {
		fmt.Fprintln(out, "No alias collisions.")
		return nil
	}
	aliases := make([]string, 0, len(collisions))
	for alias := range collisions {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		fmt.Fprintf(out, "%q: %s\n", alias, strings.Join(collisions[alias], ", "))
	}
	return nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !forceWrite {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}
	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}

// joinArgs rebuilds invocation text from shell words, quoting words that
// the tokenizer would otherwise split.
func joinArgs(args []string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(a) + `"`
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}

func firstWord(text string) string {
	if fields := strings.Fields(text); len(fields) > 0 {
		return fields[0]
	}
	return text
}
