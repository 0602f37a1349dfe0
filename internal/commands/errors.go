package commands

import "errors"

// Common errors for command registration and execution.
var (
	ErrMissingID            = errors.New("command id is required")
	ErrMissingHandler       = errors.New("command handler is required")
	ErrAlreadyRegistered    = errors.New("command already registered")
	ErrInvalidAlias         = errors.New("invalid alias")
	ErrInvalidConfirmPolicy = errors.New("invalid confirm policy")
	ErrInvalidResolver      = errors.New("invalid type resolver")
	ErrCommandNotFound      = errors.New("command not found")
	ErrPermissionDenied     = errors.New("permission denied")
)

// Permission denial reasons.
const (
	ReasonRoom = "Permission denied: command not allowed in this room"
	ReasonRole = "Permission denied: insufficient role"
)

// PermissionError is returned by Execute when a permission gate rejects
// the invocation.
type PermissionError struct {
	CommandID string
	Reason    string
}

func (e *PermissionError) Error() string {
	return e.Reason
}

// Is makes errors.Is(err, ErrPermissionDenied) hold.
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}
