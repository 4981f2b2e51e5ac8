// Package confirm tracks reaction-based confirmations of destructive moderator actions.
package confirm

import (
	"context"
	"sync"
	"time"
)

const (
	ConfirmEmoji = "✅"
	CancelEmoji  = "❌"

	// DefaultTimeout is how long a prompt waits for a reaction.
	DefaultTimeout = 60 * time.Second
)

// Outcome is how a confirmation prompt ended.
type Outcome int

const (
	OutcomeTimedOut Outcome = iota
	OutcomeConfirmed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "timed_out"
	}
}

// Waiter matches reactions to open prompts.
type Waiter struct {
	mu      sync.Mutex
	pending map[uint64]*Pending
}

// NewWaiter creates an empty Waiter.
func NewWaiter() *Waiter {
	return &Waiter{pending: make(map[uint64]*Pending)}
}

// Pending is one open prompt.
type Pending struct {
	waiter      *Waiter
	messageID   uint64
	moderatorID uint64
	result      chan Outcome
}

// Register opens a prompt on messageID that only moderatorID may answer.
// Registering the same message twice replaces the earlier prompt.
func (w *Waiter) Register(messageID, moderatorID uint64) *Pending {
	p := &Pending{
		waiter:      w,
		messageID:   messageID,
		moderatorID: moderatorID,
		result:      make(chan Outcome, 1),
	}

	w.mu.Lock()
	w.pending[messageID] = p
	w.mu.Unlock()

	return p
}

// Resolve delivers a reaction. It returns false when the reaction does not
// answer an open prompt: wrong message, wrong user, other emoji, or a prompt
// that has already ended.
func (w *Waiter) Resolve(messageID, userID uint64, emoji string) bool {
	var outcome Outcome
	switch emoji {
	case ConfirmEmoji:
		outcome = OutcomeConfirmed
	case CancelEmoji:
		outcome = OutcomeCancelled
	default:
		return false
	}

	w.mu.Lock()
	p, ok := w.pending[messageID]
	if !ok || p.moderatorID != userID {
		w.mu.Unlock()
		return false
	}
	delete(w.pending, messageID)
	w.mu.Unlock()

	p.result <- outcome
	return true
}

// Len returns the number of open prompts.
func (w *Waiter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Waiter) release(p *Pending) {
	w.mu.Lock()
	if w.pending[p.messageID] == p {
		delete(w.pending, p.messageID)
	}
	w.mu.Unlock()
}

// Wait blocks until the prompt is answered, the timeout passes or ctx ends.
// A prompt yields exactly one outcome.
func (p *Pending) Wait(ctx context.Context, timeout time.Duration) Outcome {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-p.result:
		return outcome
	case <-timer.C:
	case <-ctx.Done():
	}

	p.waiter.release(p)

	// A reaction may have landed between the timer firing and the release.
	select {
	case outcome := <-p.result:
		return outcome
	default:
		return OutcomeTimedOut
	}
}

// Cancel closes the prompt without waiting.
func (p *Pending) Cancel() {
	p.waiter.release(p)
}
