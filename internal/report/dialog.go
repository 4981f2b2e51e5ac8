// Package report runs the direct-message conversation that collects a
// child safety report and files it as a moderation case.
package report

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/sentinel/internal/common/types"
)

const (
	// CaseReason is the reason recorded on cases filed through the dialog.
	CaseReason = "Child Safety Concern"
	// CaseScore is the score assigned to user-reported cases.
	CaseScore = 30
)

var (
	ErrGuildNotFound   = errors.New("guild not found")
	ErrChannelNotFound = errors.New("channel not found")
	ErrMessageNotFound = errors.New("message not found")
)

var linkPattern = regexp.MustCompile(`/(\d+)/(\d+)/(\d+)`)

// Resolver looks up the message a report link points at.
type Resolver interface {
	ResolveMessage(ctx context.Context, guildID, channelID, messageID uint64) (types.Message, error)
}

// Enqueuer accepts finished reports.
type Enqueuer interface {
	Enqueue(ctx context.Context, c *types.ModerationCase) error
}

// Session is the per-user dialog state.
type Session struct {
	UserID         uint64         `json:"userId"`
	State          State          `json:"state"`
	TargetMessage  *types.Message `json:"targetMessage,omitempty"`
	ConcernType    string         `json:"concernType,omitempty"`
	ConcernDetail  string         `json:"concernDetail,omitempty"`
	AdditionalInfo string         `json:"additionalInfo,omitempty"`
	BlockRequested bool           `json:"blockRequested"`
	CaseID         string         `json:"caseId,omitempty"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// NewSession starts a dialog for userID.
func NewSession(userID uint64, now time.Time) *Session {
	return &Session{UserID: userID, State: StateStart, UpdatedAt: now}
}

// Complete reports whether the dialog has reached its terminal state.
func (s *Session) Complete() bool {
	return s.State == StateFinished
}

// Dialog advances sessions one message at a time.
type Dialog struct {
	resolver Resolver
	queue    Enqueuer
	now      func() time.Time
}

// NewDialog creates a Dialog.
func NewDialog(resolver Resolver, queue Enqueuer, clock func() time.Time) *Dialog {
	if clock == nil {
		clock = time.Now
	}

	return &Dialog{resolver: resolver, queue: queue, now: clock}
}

// Handle feeds one message into the session and returns the replies to send.
// The session is updated in place.
func (d *Dialog) Handle(ctx context.Context, s *Session, text string) ([]string, error) {
	if s.Complete() {
		return nil, nil
	}

	text = strings.TrimSpace(text)

	if strings.EqualFold(text, CancelKeyword) {
		s.State = StateFinished
		s.UpdatedAt = d.now()
		return []string{msgCancelled}, nil
	}

	next, replies, err := d.step(ctx, s, text)
	if err != nil {
		return nil, err
	}

	s.State = next
	s.UpdatedAt = d.now()

	return replies, nil
}

func (d *Dialog) step(ctx context.Context, s *Session, text string) (State, []string, error) {
	switch s.State {
	case StateStart:
		return StateAwaitingMessageLink, []string{msgIntake}, nil

	case StateAwaitingMessageLink:
		return d.awaitLink(ctx, s, text)

	case StateCategorySelect:
		if text != childSafetyCategory {
			return StateFinished, []string{msgUnsupportedType}, nil
		}
		return StateConcernDetail, []string{msgConcernTypes}, nil

	case StateConcernDetail:
		s.ConcernType = choice(concernTypes, text)
		return StateBehaviorDetail, []string{msgBehaviors}, nil

	case StateBehaviorDetail:
		s.ConcernDetail = choice(behaviors, text)
		return StateAdditionalContext, []string{msgAdditionalInfo}, nil

	case StateAdditionalContext:
		if !strings.EqualFold(text, "no") {
			s.AdditionalInfo = text
		}
		return StateBlockPrompt, []string{msgBlockPrompt}, nil

	case StateBlockPrompt:
		s.BlockRequested = strings.EqualFold(text, "yes")
		c := d.buildCase(s)
		if err := d.queue.Enqueue(ctx, c); err != nil {
			return s.State, nil, err
		}
		s.CaseID = c.ID

		reply := msgThanks
		if s.BlockRequested {
			reply = msgBlocked + msgThanks
		}
		return StateFinished, []string{reply}, nil

	default:
		return StateFinished, nil, nil
	}
}

func (d *Dialog) awaitLink(ctx context.Context, s *Session, text string) (State, []string, error) {
	match := linkPattern.FindStringSubmatch(text)
	if match == nil {
		return s.State, []string{msgBadLink}, nil
	}

	ids := make([]uint64, 3)
	for i := range ids {
		id, err := strconv.ParseUint(match[i+1], 10, 64)
		if err != nil {
			return s.State, []string{msgBadLink}, nil
		}
		ids[i] = id
	}

	msg, err := d.resolver.ResolveMessage(ctx, ids[0], ids[1], ids[2])
	switch {
	case errors.Is(err, ErrGuildNotFound):
		return s.State, []string{msgUnknownGuild}, nil
	case errors.Is(err, ErrChannelNotFound):
		return s.State, []string{msgMissingChannel}, nil
	case errors.Is(err, ErrMessageNotFound):
		return s.State, []string{msgMissingMessage}, nil
	case err != nil:
		return s.State, []string{msgLookupFailed}, nil
	}

	s.TargetMessage = &msg

	found := "I found this message:```" + msg.AuthorName + ": " + msg.Content + "```\n"

	return StateCategorySelect, []string{found + msgCategories}, nil
}

func (d *Dialog) buildCase(s *Session) *types.ModerationCase {
	var details strings.Builder
	details.WriteString("**Concern:** " + s.ConcernType + "\n")
	details.WriteString("**Details:** " + s.ConcernDetail)
	if s.AdditionalInfo != "" {
		details.WriteString("\n**Additional info:** " + s.AdditionalInfo)
	}
	if s.BlockRequested {
		details.WriteString("\n**Reporter blocked the user**")
	}

	c := &types.ModerationCase{
		ID:         uuid.NewString(),
		Source:     types.CaseSourceUserReport,
		ReporterID: s.UserID,
		Reason:     CaseReason,
		Details:    details.String(),
		Score:      CaseScore,
		Status:     types.CaseStatusPending,
		CreatedAt:  d.now(),
	}

	if s.TargetMessage != nil {
		c.Message = *s.TargetMessage
		c.ReportedUserID = s.TargetMessage.AuthorID
	}

	return c
}

// choice maps a numeric option to its label and keeps raw text otherwise.
func choice(options map[string]string, text string) string {
	if label, ok := options[text]; ok {
		return label
	}

	return text
}

// Now returns the dialog's clock reading.
func (d *Dialog) Now() time.Time {
	return d.now()
}
