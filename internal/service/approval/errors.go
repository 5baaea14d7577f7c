package approval

import "errors"

// Sentinel errors for the approval state machine.
var (
	ErrNotFound         = errors.New("message not found")
	ErrAlreadyProcessed = errors.New("message already processed")
	ErrApplyFailed      = errors.New("pending action could not be applied")
)
