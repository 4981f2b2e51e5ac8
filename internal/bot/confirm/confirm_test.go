package confirm_test

import (
	"testing"
	"time"

	"github.com/robalyx/sentinel/internal/bot/confirm"
	"github.com/stretchr/testify/assert"
)

func TestConfirmAndCancel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		emoji string
		want  confirm.Outcome
	}{
		{name: "confirm", emoji: confirm.ConfirmEmoji, want: confirm.OutcomeConfirmed},
		{name: "cancel", emoji: confirm.CancelEmoji, want: confirm.OutcomeCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := confirm.NewWaiter()
			p := w.Register(10, 1)

			go func() {
				assert.True(t, w.Resolve(10, 1, tt.emoji))
			}()

			assert.Equal(t, tt.want, p.Wait(t.Context(), time.Second))
			assert.Zero(t, w.Len())
		})
	}
}

func TestIgnoresOtherUsersAndEmoji(t *testing.T) {
	t.Parallel()

	w := confirm.NewWaiter()
	p := w.Register(10, 1)

	assert.False(t, w.Resolve(10, 2, confirm.ConfirmEmoji))
	assert.False(t, w.Resolve(10, 1, "👍"))
	assert.False(t, w.Resolve(11, 1, confirm.ConfirmEmoji))

	assert.Equal(t, confirm.OutcomeTimedOut, p.Wait(t.Context(), 20*time.Millisecond))
}

func TestLateReactionIsIgnored(t *testing.T) {
	t.Parallel()

	w := confirm.NewWaiter()
	p := w.Register(10, 1)

	assert.Equal(t, confirm.OutcomeTimedOut, p.Wait(t.Context(), 10*time.Millisecond))
	assert.False(t, w.Resolve(10, 1, confirm.ConfirmEmoji))
	assert.Zero(t, w.Len())
}

func TestSecondReactionIsIgnored(t *testing.T) {
	t.Parallel()

	w := confirm.NewWaiter()
	p := w.Register(10, 1)

	assert.True(t, w.Resolve(10, 1, confirm.CancelEmoji))
	assert.False(t, w.Resolve(10, 1, confirm.ConfirmEmoji))
	assert.Equal(t, confirm.OutcomeCancelled, p.Wait(t.Context(), time.Second))
}
