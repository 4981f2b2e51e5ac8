// Package conversation buffers recent messages per user and turns them
// into classifier context.
package conversation

import (
	"slices"
	"time"

	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/common/utils"
)

const (
	// DefaultMaxMessages caps each user's buffer.
	DefaultMaxMessages = 50
	// DefaultTimeWindow is the maximum age of a buffered message.
	DefaultTimeWindow = 24 * time.Hour
)

// BufferedMessage is a message plus the time it entered the buffer.
type BufferedMessage struct {
	Message    types.Message
	BufferedAt time.Time
}

type entry struct {
	messages []BufferedMessage
}

// Window keeps a bounded, time-pruned buffer of messages for each user.
type Window struct {
	maxMessages int
	timeWindow  time.Duration
	now         func() time.Time
	entries     *utils.LockedMap[uint64, *entry]
}

// Option configures a Window.
type Option func(*Window)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		w.now = now
	}
}

// NewWindow creates a Window. Non-positive limits fall back to the defaults.
func NewWindow(maxMessages int, timeWindow time.Duration, opts ...Option) *Window {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if timeWindow <= 0 {
		timeWindow = DefaultTimeWindow
	}

	w := &Window{
		maxMessages: maxMessages,
		timeWindow:  timeWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}

	w.entries = utils.NewLockedMap[uint64, *entry](w.now)

	return w
}

// Add appends a message to the user's buffer, then drops messages older than
// the time window and keeps only the most recent maxMessages.
func (w *Window) Add(userID uint64, msg types.Message) {
	w.entries.Update(userID, func() *entry { return &entry{} }, func(e *entry) {
		now := w.now()
		e.messages = append(e.messages, BufferedMessage{Message: msg, BufferedAt: now})

		cutoff := now.Add(-w.timeWindow)
		e.messages = slices.DeleteFunc(e.messages, func(m BufferedMessage) bool {
			return m.BufferedAt.Before(cutoff)
		})

		if over := len(e.messages) - w.maxMessages; over > 0 {
			e.messages = slices.Delete(e.messages, 0, over)
		}
	})
}

// Context returns a copy of the user's most recent n messages in chronological order.
// A non-positive n returns the whole buffer. Unknown users yield nil.
func (w *Window) Context(userID uint64, n int) []BufferedMessage {
	var out []BufferedMessage

	w.entries.View(userID, func(e *entry) {
		start := 0
		if n > 0 && len(e.messages) > n {
			start = len(e.messages) - n
		}
		out = slices.Clone(e.messages[start:])
	})

	return out
}

// Len returns the number of users with a buffer.
func (w *Window) Len() int {
	return w.entries.Len()
}

// Sweep drops buffers that have not received a message within maxIdle.
func (w *Window) Sweep(maxIdle time.Duration) int {
	return w.entries.Sweep(maxIdle)
}
