package testutil

import (
	"context"
	"sync"

	"github.com/roach88/tokenx/internal/ir"
)

// RecordingNotifier collects every notification it receives.
//
// Implements registry.Notifier. An optional hook runs for each
// notification with the context the registry handed to the sink, which
// lets tests exercise sink behavior such as re-entrant calls.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingNotifier struct {
	mu   sync.Mutex
	seen []ir.Notification
	hook func(ctx context.Context, n ir.Notification) error
}

// NewRecordingNotifier creates an empty recorder.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// OnNotify installs a hook that runs after each notification is recorded.
// The hook's error is returned from Notify.
func (r *RecordingNotifier) OnNotify(hook func(ctx context.Context, n ir.Notification) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = hook
}

// Notify records n and runs the hook, if any.
func (r *RecordingNotifier) Notify(ctx context.Context, n ir.Notification) error {
	r.mu.Lock()
	r.seen = append(r.seen, n)
	hook := r.hook
	r.mu.Unlock()

	if hook != nil {
		return hook(ctx, n)
	}
	return nil
}

// Notifications returns a copy of everything recorded so far.
func (r *RecordingNotifier) Notifications() []ir.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.Notification, len(r.seen))
	copy(out, r.seen)
	return out
}

// Reset discards all recorded notifications.
//
// Used for test reuse.
func (r *RecordingNotifier) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = nil
}
