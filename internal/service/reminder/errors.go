package reminder

import "errors"

// Sentinel errors for the reminder service layer.
var (
	ErrNotFound = errors.New("reminder not found")
	ErrTerminal = errors.New("reminder already resolved")
)
