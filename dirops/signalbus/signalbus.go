package signalbus

import "context"

// Signaler delivers named events to the subsystem that performs the actual
// directory mutations. Emit is fire-and-forget: a nil return means the
// signal was accepted for delivery, not that downstream processing
// finished.
type Signaler interface {
	Emit(ctx context.Context, event string, params []string) error
}
