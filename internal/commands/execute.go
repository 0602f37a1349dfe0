package commands

import (
	"context"
	"fmt"
	"slices"

	"cmdbus/internal/events"
	"cmdbus/internal/logging"
)

// Execute runs a command behind its permission gates and reports the
// outcome as an event. Handler errors are returned unchanged.
func (b *Bus) Execute(ctx context.Context, commandID string, args map[string]any, origin Origin) (any, error) {
	cmd, ok := b.registry.Get(commandID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, commandID)
	}

	if err := b.checkPermissions(ctx, cmd, origin); err != nil {
		return nil, err
	}

	start := b.now()
	logging.BusDebug("Executing command: %s (user=%s, room=%s)", cmd.ID, origin.User.ID, origin.Room)
	result, err := cmd.Handler(ctx, Request{CommandID: cmd.ID, Args: args, Origin: origin})
	duration := b.now().Sub(start)

	if err != nil {
		logging.Get(logging.CategoryBus).Warn("Command %s failed after %v: %v", cmd.ID, duration, err)
		b.emit(events.Event{
			Type:       events.Error,
			CommandID:  cmd.ID,
			Args:       args,
			UserID:     origin.User.ID,
			Room:       origin.Room,
			Error:      err.Error(),
			DurationMs: duration.Milliseconds(),
		})
		return nil, err
	}

	b.emit(events.Event{
		Type:       events.Executed,
		CommandID:  cmd.ID,
		Args:       args,
		UserID:     origin.User.ID,
		Room:       origin.Room,
		Result:     result,
		DurationMs: duration.Milliseconds(),
	})
	return result, nil
}

func (b *Bus) checkPermissions(ctx context.Context, cmd Command, origin Origin) error {
	if len(cmd.Permissions.Rooms) > 0 && !slices.Contains(cmd.Permissions.Rooms, origin.Room) {
		return b.deny(cmd, origin, ReasonRoom)
	}

	if len(cmd.Permissions.Roles) == 0 {
		return nil
	}
	if b.opts.PermissionProvider == nil {
		logging.Get(logging.CategoryBus).Warn("Command %s declares roles %v but no permission provider is configured; allowing", cmd.ID, cmd.Permissions.Roles)
		return nil
	}

	allowed, err := b.opts.PermissionProvider.HasRole(ctx, origin.User, cmd.Permissions.Roles, origin)
	if err != nil {
		return fmt.Errorf("failed to check roles for %s: %w", cmd.ID, err)
	}
	if !allowed {
		return b.deny(cmd, origin, ReasonRole)
	}
	return nil
}

func (b *Bus) deny(cmd Command, origin Origin, reason string) error {
	b.emit(events.Event{
		Type:      events.PermissionDenied,
		CommandID: cmd.ID,
		UserID:    origin.User.ID,
		Room:      origin.Room,
		Reason:    reason,
	})
	return &PermissionError{CommandID: cmd.ID, Reason: reason}
}
