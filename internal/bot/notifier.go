package bot

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/sentinel/internal/bot/render"
	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/detector"
	"github.com/robalyx/sentinel/internal/storage"
	"go.uber.org/zap"
)

// Sender posts a message to a channel.
type Sender interface {
	Send(ctx context.Context, channelID uint64, msg discord.MessageCreate) (uint64, error)
}

// Notifier posts detector events to the moderator channel.
// A zero channel ID turns every method into a no-op.
type Notifier struct {
	sender    Sender
	channelID uint64
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotifier creates a Notifier.
func NewNotifier(sender Sender, channelID uint64, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender:    sender,
		channelID: channelID,
		logger:    logger.Named("notifier"),
		now:       time.Now,
	}
}

var _ detector.Notifier = (*Notifier)(nil)

func (n *Notifier) Analysis(ctx context.Context, a *detector.Analysis) {
	if a.Result.Failed() {
		n.send(ctx, "processing_error", render.ProcessingError(errors.New(a.Result.Err)))
		return
	}

	n.send(ctx, "analysis", render.Analysis(a.Message, a.Result, a.Assessment, a.Context, n.now()))
}

func (n *Notifier) Escalated(ctx context.Context, a *detector.Analysis, _ *types.ModerationCase) {
	n.send(ctx, "escalation", render.Escalation(a.Message, a.Result, a.Assessment))
}

func (n *Notifier) Consequence(ctx context.Context, msg types.Message, c storage.Consequence) {
	n.send(ctx, "consequence", render.Consequence(msg, c))
}

func (n *Notifier) Failure(ctx context.Context, msg types.Message, err error) {
	n.send(ctx, "failure", render.Failure(msg, err))
}

func (n *Notifier) send(ctx context.Context, kind string, msg discord.MessageCreate) {
	if n.channelID == 0 {
		return
	}

	if _, err := n.sender.Send(ctx, n.channelID, msg); err != nil {
		n.logger.Error("Failed to post moderator alert",
			zap.String("kind", kind),
			zap.Uint64("channel_id", n.channelID),
			zap.Error(err))
	}
}
