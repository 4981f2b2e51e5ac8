package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robalyx/sentinel/internal/bot/confirm"
	"github.com/robalyx/sentinel/internal/bot/platform"
	"github.com/robalyx/sentinel/internal/bot/render"
	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/moderation"
	"go.uber.org/zap"
)

const (
	msgActionUsage   = "Please specify an action: `!action [ban|suspend|increase|report|none|skip]`"
	msgActionUnknown = "Unknown action type. Use `ban`, `suspend`, `increase`, `report`, `none`, or `skip`."
	msgSuspendUsage  = "Please specify suspension duration: `!action suspend [days]`"
	msgSuspendBad    = "Invalid duration. Please use a number of days."
	msgScoreUsage    = "Please specify new score: `!action increase [new_score]`"
	msgScoreBad      = "Invalid score. Please use a number."
	msgScoreRange    = "Score must be between 0 and 100."
	msgNoGuild       = "Cannot access the guild for this report."
	msgNoMember      = "Cannot find the reported user in the guild."
	msgNoAction      = "No action taken. Report marked as complete."
	msgSkipped       = "Report skipped. Use `!next` to move to the next report."

	msgBanConfirm = "Are you sure you want to ban %s? React with ✅ to confirm or ❌ to cancel."
	msgBanDone    = "User %s has been banned."
	msgBanCancel  = "Ban canceled."
	msgBanTimeout = "Ban action timed out."

	msgLawConfirm = "Are you sure you want to report this to law enforcement? React with ✅ to confirm or ❌ to cancel."
	msgLawDone    = "This incident has been flagged for law enforcement reporting."
	msgLawCancel  = "Law enforcement reporting canceled."
	msgLawTimeout = "Law enforcement reporting action timed out."

	suspendTimeLayout = "2006-01-02 15:04 UTC"
	maxSuspendDays    = int(platform.MaxTimeout / (24 * time.Hour))
)

func (h *Handler) action(ctx context.Context, req Request) {
	c, ok := h.current(ctx, req)
	if !ok {
		return
	}

	kind := req.Command.Arg(0)
	if kind == "" {
		h.say(ctx, req, msgActionUsage)
		return
	}

	if kind != "skip" && !c.IsPending() {
		h.say(ctx, req, msgCaseClosed)
		return
	}

	switch kind {
	case "ban":
		h.ban(ctx, req, c)
	case "suspend":
		h.suspend(ctx, req, c)
	case "increase":
		h.adjustScore(ctx, req, c)
	case "report":
		h.reportToLaw(ctx, req, c)
	case "none":
		if h.resolve(ctx, req, c, types.ActionNone) {
			h.say(ctx, req, msgNoAction)
		}
	case "skip":
		if _, err := h.queue.Skip(); err != nil {
			h.say(ctx, req, msgNoSelection)
			return
		}
		h.say(ctx, req, msgSkipped)
	default:
		h.say(ctx, req, msgActionUnknown)
	}
}

// resolve completes the case and reports whether it was still open.
func (h *Handler) resolve(ctx context.Context, req Request, c *types.ModerationCase, kind types.ActionKind) bool {
	if _, err := h.queue.Resolve(ctx, c.ID, kind); err != nil {
		if errors.Is(err, moderation.ErrCaseClosed) {
			h.say(ctx, req, msgCaseClosed)
			return false
		}

		h.logger.Error("Failed to resolve case",
			zap.String("case_id", c.ID),
			zap.String("action", string(kind)),
			zap.Error(err))
		h.say(ctx, req, "Error resolving report: "+err.Error())

		return false
	}

	h.logger.Info("Case resolved",
		zap.String("case_id", c.ID),
		zap.String("action", string(kind)),
		zap.Uint64("moderator_id", req.ModeratorID),
		zap.Uint64("user_id", c.ReportedUserID))

	return true
}

// member looks up the reported user's name in the case's guild, replying on failure.
func (h *Handler) member(ctx context.Context, req Request, c *types.ModerationCase, verb string) (string, bool) {
	if c.Message.GuildID == 0 {
		h.say(ctx, req, msgNoGuild)
		return "", false
	}

	name, err := h.platform.MemberName(ctx, c.Message.GuildID, c.ReportedUserID)
	if err != nil {
		if errors.Is(err, platform.ErrUserNotInGuild) {
			h.say(ctx, req, msgNoMember)
		} else {
			h.say(ctx, req, fmt.Sprintf("Error %s user: %s", verb, err))
		}
		return "", false
	}

	return name, true
}

// awaitConfirmation posts prompt, adds the reactions and waits for the moderator's answer.
func (h *Handler) awaitConfirmation(ctx context.Context, req Request, prompt string) (confirm.Outcome, error) {
	messageID, err := h.platform.Send(ctx, req.ChannelID, render.Text(prompt))
	if err != nil {
		return confirm.OutcomeCancelled, err
	}

	pending := h.waiter.Register(messageID, req.ModeratorID)

	for _, emoji := range []string{confirm.ConfirmEmoji, confirm.CancelEmoji} {
		if err := h.platform.AddReaction(ctx, req.ChannelID, messageID, emoji); err != nil {
			h.logger.Warn("Failed to add confirmation reaction",
				zap.Uint64("message_id", messageID),
				zap.String("emoji", emoji),
				zap.Error(err))
		}
	}

	outcome := pending.Wait(ctx, h.confirmTimeout)

	h.logger.Debug("Confirmation finished",
		zap.Uint64("message_id", messageID),
		zap.Uint64("moderator_id", req.ModeratorID),
		zap.String("outcome", outcome.String()))

	return outcome, nil
}

func (h *Handler) ban(ctx context.Context, req Request, c *types.ModerationCase) {
	name, ok := h.member(ctx, req, c, "banning")
	if !ok {
		return
	}

	outcome, err := h.awaitConfirmation(ctx, req, fmt.Sprintf(msgBanConfirm, name))
	if err != nil {
		h.say(ctx, req, "Error banning user: "+err.Error())
		return
	}

	switch outcome {
	case confirm.OutcomeConfirmed:
		if err := h.platform.Ban(ctx, c.Message.GuildID, c.ReportedUserID, "Banned by moderator for "+c.Reason); err != nil {
			h.say(ctx, req, "Error banning user: "+err.Error())
			return
		}

		if h.resolve(ctx, req, c, types.ActionBan) {
			h.say(ctx, req, fmt.Sprintf(msgBanDone, name))
		}
	case confirm.OutcomeCancelled:
		h.say(ctx, req, msgBanCancel)
	case confirm.OutcomeTimedOut:
		h.say(ctx, req, msgBanTimeout)
	}
}

func (h *Handler) suspend(ctx context.Context, req Request, c *types.ModerationCase) {
	raw := req.Command.Arg(1)
	if raw == "" {
		h.say(ctx, req, msgSuspendUsage)
		return
	}

	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		h.say(ctx, req, msgSuspendBad)
		return
	}

	name, ok := h.member(ctx, req, c, "suspending")
	if !ok {
		return
	}

	// Discord caps member timeouts
	var note string
	if days > maxSuspendDays {
		days = maxSuspendDays
		note = fmt.Sprintf(" Timeouts are limited to %d days.", maxSuspendDays)
	}

	until := h.now().UTC().Add(time.Duration(days) * 24 * time.Hour)
	if err := h.platform.Timeout(ctx, c.Message.GuildID, c.ReportedUserID, until, "Timed out for "+c.Reason); err != nil {
		h.say(ctx, req, "Error suspending user: "+err.Error())
		return
	}

	if h.resolve(ctx, req, c, types.ActionSuspend) {
		h.say(ctx, req, fmt.Sprintf("User %s has been suspended for %d days (until %s).%s",
			name, days, until.Format(suspendTimeLayout), note))
	}
}

// adjustScore stores the moderator's trust score N as a risk score of 100-N.
func (h *Handler) adjustScore(ctx context.Context, req Request, c *types.ModerationCase) {
	raw := req.Command.Arg(1)
	if raw == "" {
		h.say(ctx, req, msgScoreUsage)
		return
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		h.say(ctx, req, msgScoreBad)
		return
	}

	if value < 0 || value > 100 {
		h.say(ctx, req, msgScoreRange)
		return
	}

	if !h.resolve(ctx, req, c, types.ActionAdjustScore) {
		return
	}

	h.risks.OverrideScore(c.ReportedUserID, float64(100-value))
	h.say(ctx, req, fmt.Sprintf("User's risk score has been updated to %d.", value))
}

func (h *Handler) reportToLaw(ctx context.Context, req Request, c *types.ModerationCase) {
	outcome, err := h.awaitConfirmation(ctx, req, msgLawConfirm)
	if err != nil {
		h.say(ctx, req, "Error reporting to law enforcement: "+err.Error())
		return
	}

	switch outcome {
	case confirm.OutcomeConfirmed:
		if h.resolve(ctx, req, c, types.ActionReportToLaw) {
			h.say(ctx, req, msgLawDone)
		}
	case confirm.OutcomeCancelled:
		h.say(ctx, req, msgLawCancel)
	case confirm.OutcomeTimedOut:
		h.say(ctx, req, msgLawTimeout)
	}
}
