package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cmdbus/internal/catalog"
	"cmdbus/internal/commands"
	"cmdbus/internal/config"
	"cmdbus/internal/directory"
	"cmdbus/internal/listener"
)

// host bundles everything a subcommand needs to run commands.
type host struct {
	bus     *commands.Bus
	dir     directory.Directory
	catalog *catalog.Catalog
	watcher *catalog.Watcher
	tickets *ticketStore
}

// newHost builds a bus from c, opens the configured user directory and
// registers the demo, help and catalog commands. The catalog watcher is only
// started when watch is set; Close stops everything.
func newHost(ctx context.Context, c *config.Config, watch bool) (*host, error) {
	dir, err := directory.Open(ctx, c.Directory.Driver, c.Directory.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user directory: %w", err)
	}

	opts := commands.DefaultOptions()
	opts.Prefix = c.Bus.Prefix
	opts.ProposalTTL = c.GetProposalTTL()
	opts.DisableLogging = c.Bus.DisableLogging
	if c.Bus.LogPath != "" {
		opts.LogPath = c.Bus.LogPath
	}
	if dir != nil {
		opts.Users = dir
		opts.PermissionProvider = directory.NewRoleAuthority(dir)
	}

	h := &host{
		bus:     commands.New(opts),
		dir:     dir,
		tickets: newTicketStore(),
	}

	if err := registerDemo(h.bus, h.tickets); err != nil {
		h.Close()
		return nil, err
	}
	if err := listener.RegisterHelp(h.bus); err != nil {
		h.Close()
		return nil, err
	}

	if c.Catalog.Path != "" {
		h.catalog = catalog.New(h.bus, nil)
		res, err := h.catalog.LoadAndApply(c.Catalog.Path)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("failed to load catalog %s: %w", c.Catalog.Path, err)
		}
		logger.Debug("Catalog applied",
			zap.String("path", c.Catalog.Path),
			zap.Strings("registered", res.Registered))

		if watch && c.Catalog.Watch {
			w, err := catalog.NewWatcher(c.Catalog.Path, h.catalog)
			if err != nil {
				h.Close()
				return nil, fmt.Errorf("failed to watch catalog: %w", err)
			}
			w.OnReload = func(res catalog.ApplyResult, err error) {
				if err != nil {
					logger.Warn("Catalog reload failed", zap.Error(err))
					return
				}
				logger.Info("Catalog reloaded",
					zap.Strings("registered", res.Registered),
					zap.Strings("updated", res.Updated),
					zap.Strings("removed", res.Removed))
			}
			if err := w.Start(ctx); err != nil {
				w.Stop()
				h.Close()
				return nil, fmt.Errorf("failed to watch catalog: %w", err)
			}
			h.watcher = w
		}
	}

	logger.Debug("Bus ready", zap.Int("commands", len(h.bus.ListCommands(""))))
	return h, nil
}

// origin resolves id against the directory so that its name and roles are
// used; unknown ids act with no roles.
func (h *host) origin(id, room string) commands.Origin {
	user := commands.User{ID: id, Name: id}
	if h.dir != nil {
		if u, ok := h.dir.Users()[id]; ok {
			user = u
		}
	}
	return commands.Origin{User: user, Room: room}
}

// Close stops the watcher, closes the bus and the directory.
func (h *host) Close() {
	if h.watcher != nil {
		h.watcher.Stop()
	}
	h.bus.Close()
	if h.dir != nil {
		if err := h.dir.Close(); err != nil {
			logger.Warn("Failed to close user directory", zap.Error(err))
		}
	}
}

// currentConfig returns the config loaded by the root command, or the
// defaults when a subcommand runs without it (tests).
func currentConfig() *config.Config {
	if cfg != nil {
		return cfg
	}
	return config.DefaultConfig()
}
