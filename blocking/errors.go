package blocking

import (
	"errors"
	"fmt"
)

// Configuration and usage errors.
var (
	ErrThresholdRequired = errors.New("blocking: threshold is required")
	ErrNegativeThreshold = errors.New("blocking: threshold must not be negative")
	ErrInvalidThreshold  = errors.New("blocking: threshold must be a finite number")
	ErrNilRuntime        = errors.New("blocking: runtime must not be nil")
	ErrNilFunc           = errors.New("blocking: function must not be nil")
)

// A SubscriberError is reported to the runtime when a subscriber panics while
// handling a BlockedEvent.
type SubscriberError struct {
	EventID string
	Value   any
}

func (e *SubscriberError) Error() string {
	return fmt.Sprintf("blocking: subscriber panicked on event %s: %v",
		e.EventID, e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *SubscriberError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
