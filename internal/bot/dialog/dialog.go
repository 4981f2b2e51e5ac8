// Package dialog relays direct messages to the report flow and sends its replies.
package dialog

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/sentinel/internal/bot/render"
	"go.uber.org/zap"
)

const msgFailed = "Something went wrong while handling your report. Please try again or say `cancel` to cancel."

// Reporter advances a user's report conversation.
type Reporter interface {
	HandleDirectMessage(ctx context.Context, userID uint64, text string) ([]string, error)
}

// Sender delivers replies.
type Sender interface {
	Send(ctx context.Context, channelID uint64, msg discord.MessageCreate) (uint64, error)
}

// Handler answers direct messages.
type Handler struct {
	reporter Reporter
	sender   Sender
	logger   *zap.Logger
}

// New creates a Handler.
func New(reporter Reporter, sender Sender, logger *zap.Logger) *Handler {
	return &Handler{
		reporter: reporter,
		sender:   sender,
		logger:   logger.Named("dialog"),
	}
}

// Handle processes one direct message and sends every reply in order.
func (h *Handler) Handle(ctx context.Context, channelID, userID uint64, text string) {
	replies, err := h.reporter.HandleDirectMessage(ctx, userID, text)
	if err != nil {
		h.logger.Error("Failed to handle direct message",
			zap.Uint64("user_id", userID),
			zap.Error(err))
		replies = []string{msgFailed}
	}

	for _, reply := range replies {
		if _, err := h.sender.Send(ctx, channelID, render.Text(reply)); err != nil {
			h.logger.Error("Failed to send direct message reply",
				zap.Uint64("user_id", userID),
				zap.Uint64("channel_id", channelID),
				zap.Error(err))
			return
		}
	}
}
