package correction

import "errors"

// Sentinel errors for the correction service layer.
var (
	ErrNotFound = errors.New("correction record not found")
)
