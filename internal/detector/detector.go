// Package detector runs each guild message through the risk pipeline.
package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/common/utils"
	"github.com/robalyx/sentinel/internal/conversation"
	"github.com/robalyx/sentinel/internal/escalation"
	"github.com/robalyx/sentinel/internal/metrics"
	"github.com/robalyx/sentinel/internal/ratelimit"
	"github.com/robalyx/sentinel/internal/risk"
	"github.com/robalyx/sentinel/internal/storage"
	"go.uber.org/zap"
)

// ErrEnforcement marks notifier failures raised while applying a consequence on the platform.
var ErrEnforcement = errors.New("failed to enforce consequence")

// Classifier scores conversation text.
type Classifier interface {
	Classify(ctx context.Context, text string) types.ClassificationResult
}

// CaseQueue receives automatic cases.
type CaseQueue interface {
	Enqueue(ctx context.Context, c *types.ModerationCase) error
	HasPending(userID uint64, source types.CaseSource) bool
}

// Recorder appends flagged messages to the conversation log.
type Recorder interface {
	AppendFlagged(
		msg types.Message, result types.ClassificationResult, assessment escalation.Assessment,
		conversationID string, contextLen int,
	) (string, error)
}

// Notifier posts pipeline events to moderators.
type Notifier interface {
	Analysis(ctx context.Context, a *Analysis)
	Escalated(ctx context.Context, a *Analysis, c *types.ModerationCase)
	Consequence(ctx context.Context, msg types.Message, c storage.Consequence)
	Failure(ctx context.Context, msg types.Message, err error)
}

// Enforcer carries out automatic consequences on the platform.
type Enforcer interface {
	Enforce(ctx context.Context, msg types.Message, c storage.Consequence) error
}

// Analysis is everything the pipeline learned about one message.
type Analysis struct {
	Message        types.Message
	Result         types.ClassificationResult
	Assessment     escalation.Assessment
	Context        []conversation.BufferedMessage
	ConversationID string
	Case           *types.ModerationCase
	Consequence    storage.Consequence
	Skipped        bool
}

// Options toggles optional pipeline steps.
type Options struct {
	// PostAnalysis sends every analysis to the moderator channel.
	PostAnalysis bool
	// EnforceAutoActions applies automatic consequences on the platform.
	EnforceAutoActions bool
}

// Dependencies wires the detector. Only Window, Classifier, Risks and Queue are required.
type Dependencies struct {
	Window     *conversation.Window
	Classifier Classifier
	Risks      *risk.Store
	Queue      CaseQueue
	Store      storage.Store
	Recorder   Recorder
	Notifier   Notifier
	Enforcer   Enforcer
	Limiter    *ratelimit.Limiter
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Detector processes guild messages one user at a time.
type Detector struct {
	deps   Dependencies
	opts   Options
	users  *utils.KeyMutex[uint64]
	logger *zap.Logger
}

// New creates a Detector.
func New(deps Dependencies, opts Options) *Detector {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}

	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Detector{
		deps:   deps,
		opts:   opts,
		users:  utils.NewKeyMutex[uint64](),
		logger: deps.Logger.Named("detector"),
	}
}

// Process runs msg through the pipeline. Failures of optional steps are
// logged and reported, never returned; the message is always counted.
func (d *Detector) Process(ctx context.Context, msg types.Message) *Analysis {
	if d.deps.Limiter != nil && !d.deps.Limiter.Allow(ratelimit.EventClassify, msg.AuthorID, msg.GuildID) {
		d.deps.Metrics.ObserveClassification(metrics.ResultSkipped, 0)
		d.logger.Debug("Classification rate limited",
			zap.Uint64("user_id", msg.AuthorID),
			zap.Uint64("guild_id", msg.GuildID))

		return &Analysis{Message: msg, Skipped: true}
	}

	unlock := d.users.Lock(msg.AuthorID)
	defer unlock()

	d.deps.Window.Add(msg.AuthorID, msg)
	window := d.deps.Window.Context(msg.AuthorID, conversation.ClassifyContextSize)

	result := d.deps.Classifier.Classify(ctx, conversation.ClassifierText(msg, window))
	profile := d.deps.Risks.UpdateUserScore(msg.AuthorID, result)

	a := &Analysis{
		Message:        msg,
		Result:         result,
		Assessment:     escalation.Assess(profile),
		Context:        window,
		ConversationID: conversation.ID(msg, window),
	}

	if result.Failed() {
		// The profile counted the message; nothing else may act on it
		a.Assessment.Decision = escalation.Decision{Reason: "Classification failed: " + result.Err}
		d.post(ctx, a)

		return a
	}

	if d.deps.Recorder != nil && (result.Flagged() || a.Assessment.Decision.Escalate) {
		if _, err := d.deps.Recorder.AppendFlagged(msg, result, a.Assessment, a.ConversationID, len(window)); err != nil {
			d.logger.Error("Failed to save flagged conversation",
				zap.Uint64("user_id", msg.AuthorID),
				zap.Uint64("message_id", msg.ID),
				zap.Error(err))
		}
	}

	d.post(ctx, a)

	if a.Assessment.Decision.Escalate {
		d.escalate(ctx, a)
	}

	if d.deps.Store != nil {
		d.record(ctx, a, profile)
	}

	return a
}

func (d *Detector) post(ctx context.Context, a *Analysis) {
	if d.opts.PostAnalysis {
		d.deps.Notifier.Analysis(ctx, a)
	}
}

// escalate files an automatic case unless one is already pending for the user.
func (d *Detector) escalate(ctx context.Context, a *Analysis) {
	d.deps.Metrics.IncEscalations()

	userID := a.Message.AuthorID
	if d.deps.Queue.HasPending(userID, types.CaseSourceAutomatic) {
		d.logger.Debug("Automatic case already pending",
			zap.Uint64("user_id", userID),
			zap.String("reason", a.Assessment.Decision.Reason))

		return
	}

	c := escalation.NewAutomaticCase(a.Message, a.Result, a.Assessment, d.deps.Clock())
	if err := d.deps.Queue.Enqueue(ctx, c); err != nil {
		d.logger.Error("Failed to enqueue automatic case",
			zap.Uint64("user_id", userID),
			zap.Error(err))

		return
	}

	a.Case = c

	d.logger.Info("User escalated",
		zap.Uint64("user_id", userID),
		zap.String("case_id", c.ID),
		zap.String("reason", a.Assessment.Decision.Reason))

	d.deps.Notifier.Escalated(ctx, a, c)
}

// record logs the message to the stats store and applies any consequence the stored score calls for.
func (d *Detector) record(ctx context.Context, a *Analysis, profile *risk.Profile) {
	msg := a.Message

	if err := d.ensureUser(ctx, msg); err != nil {
		d.storageFailure(ctx, msg, err)
		return
	}

	err := d.deps.Store.LogConversation(ctx, storage.ConversationEntry{
		UserID:            msg.AuthorID,
		MessageID:         msg.ID,
		ConversationID:    a.ConversationID,
		ConfidenceScore:   a.Result.Confidence,
		GroomingSuspected: a.Result.Flagged(),
		MLRiskScore:       profile.RiskScore,
	})
	if err != nil {
		d.storageFailure(ctx, msg, err)
		return
	}

	stats, err := d.deps.Store.GetUserStats(ctx, msg.AuthorID)
	if err != nil {
		d.storageFailure(ctx, msg, err)
		return
	}

	consequence := storage.DetermineConsequence(stats)
	if consequence == storage.ConsequenceNone {
		return
	}

	if err := storage.ApplyConsequence(ctx, d.deps.Store, msg.AuthorID, consequence); err != nil {
		d.storageFailure(ctx, msg, err)
		return
	}

	a.Consequence = consequence

	d.logger.Warn("Automatic consequence applied",
		zap.Uint64("user_id", msg.AuthorID),
		zap.String("consequence", consequence.String()),
		zap.Float64("stored_score", stats.RiskScore))

	if d.opts.EnforceAutoActions && d.deps.Enforcer != nil {
		if err := d.deps.Enforcer.Enforce(ctx, msg, consequence); err != nil {
			d.logger.Error("Failed to enforce automatic consequence",
				zap.Uint64("user_id", msg.AuthorID),
				zap.String("consequence", consequence.String()),
				zap.Error(err))
			d.deps.Notifier.Failure(ctx, msg, fmt.Errorf("%w: %w", ErrEnforcement, err))
		}
	}

	d.deps.Notifier.Consequence(ctx, msg, consequence)
}

func (d *Detector) ensureUser(ctx context.Context, msg types.Message) error {
	exists, err := d.deps.Store.UserExists(ctx, msg.AuthorID)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return d.deps.Store.AddUser(ctx, msg.AuthorID, msg.AuthorName, nil)
}

func (d *Detector) storageFailure(ctx context.Context, msg types.Message, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	d.logger.Error("Failed to update stats for user",
		zap.Uint64("user_id", msg.AuthorID),
		zap.Error(err))
	d.deps.Notifier.Failure(ctx, msg, err)
}

type nopNotifier struct{}

func (nopNotifier) Analysis(context.Context, *Analysis) {}

func (nopNotifier) Escalated(context.Context, *Analysis, *types.ModerationCase) {}

func (nopNotifier) Consequence(context.Context, types.Message, storage.Consequence) {}

func (nopNotifier) Failure(context.Context, types.Message, error) {}
