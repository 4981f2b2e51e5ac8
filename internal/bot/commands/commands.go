// Package commands implements the moderator channel commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/sentinel/internal/bot/confirm"
	"github.com/robalyx/sentinel/internal/bot/platform"
	"github.com/robalyx/sentinel/internal/bot/render"
	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/escalation"
	"github.com/robalyx/sentinel/internal/export"
	exportCSV "github.com/robalyx/sentinel/internal/export/csv"
	"github.com/robalyx/sentinel/internal/moderation"
	"github.com/robalyx/sentinel/internal/ratelimit"
	"github.com/robalyx/sentinel/internal/risk"
	"go.uber.org/zap"
)

// DefaultPrefix starts every moderator command.
const DefaultPrefix = "!"

const (
	threadLimit = 10
	searchLimit = 100
)

const (
	msgNoReports    = "No reports in the queue."
	msgNoPending    = "No pending reports in the queue."
	msgNoSelection  = "No report currently selected. Use `!next` to select a report."
	msgCaseClosed   = "This report has already been resolved. Use `!next` to select another report."
	msgNoMessage    = "Message not available."
	msgViewUsage    = "Please specify what to view: `!view thread` or `!view message`"
	msgViewUnknown  = "Unknown view type. Use `thread` or `message`."
	msgSearchUsage  = "Please provide search keywords: `!search [keywords]`"
	msgProfileUsage = "Please specify a user ID: `!profile [user_id]`"
	msgProfileBadID = "Invalid user ID. Please provide a numeric user ID."
	msgSaved        = "💾 User profiles saved successfully!"
	msgUnknownUser  = "Unknown User"
)

// Command is a parsed moderator command.
type Command struct {
	Name string
	Args []string
}

// Parse splits a moderator message into a lowercase command name and its
// arguments. It returns false when text does not start with prefix.
func Parse(text, prefix string) (Command, bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Command{}, false
	}

	fields := strings.Fields(strings.ToLower(strings.TrimPrefix(text, prefix)))
	if len(fields) == 0 {
		return Command{}, false
	}

	return Command{Name: fields[0], Args: fields[1:]}, true
}

// Arg returns the i-th argument or "".
func (c Command) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// Queue is the moderation queue as seen by the commands.
type Queue interface {
	Next() (*types.ModerationCase, error)
	Current() (*types.ModerationCase, error)
	Resolve(ctx context.Context, caseID string, kind types.ActionKind) (*types.ModerationCase, error)
	Skip() (*types.ModerationCase, error)
	Pending() []*types.ModerationCase
	Len() int
}

// Risks is the risk profile store as seen by the commands.
type Risks interface {
	Profile(userID uint64) (*risk.Profile, bool)
	OverrideScore(userID uint64, score float64) *risk.Profile
	Profiles() []*risk.Profile
}

// Exporter writes on-demand exports.
type Exporter interface {
	SaveProfiles(profiles []*risk.Profile) (string, error)
	ExportAll(ctx context.Context, profiles []*risk.Profile) (*export.Result, error)
}

// Dependencies wires a Handler. Limiter is optional.
type Dependencies struct {
	Platform       platform.Platform
	Queue          Queue
	Risks          Risks
	Exporter       Exporter
	Waiter         *confirm.Waiter
	Limiter        *ratelimit.Limiter
	Logger         *zap.Logger
	Clock          func() time.Time
	ConfirmTimeout time.Duration
}

// Handler executes moderator commands.
type Handler struct {
	platform       platform.Platform
	queue          Queue
	risks          Risks
	exporter       Exporter
	waiter         *confirm.Waiter
	limiter        *ratelimit.Limiter
	logger         *zap.Logger
	now            func() time.Time
	confirmTimeout time.Duration
}

// New creates a Handler.
func New(deps Dependencies) *Handler {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	if deps.ConfirmTimeout <= 0 {
		deps.ConfirmTimeout = confirm.DefaultTimeout
	}

	return &Handler{
		platform:       deps.Platform,
		queue:          deps.Queue,
		risks:          deps.Risks,
		exporter:       deps.Exporter,
		waiter:         deps.Waiter,
		limiter:        deps.Limiter,
		logger:         deps.Logger.Named("commands"),
		now:            deps.Clock,
		confirmTimeout: deps.ConfirmTimeout,
	}
}

// Request is one command invocation.
type Request struct {
	Command     Command
	ChannelID   uint64
	ModeratorID uint64
	GuildID     uint64
}

// Handle runs a command, replying in the request's channel. Unknown commands are ignored.
func (h *Handler) Handle(ctx context.Context, req Request) {
	if h.limiter != nil && !h.limiter.Allow(ratelimit.EventCommand, req.ModeratorID, req.GuildID) {
		h.logger.Debug("Command rate limited",
			zap.String("command", req.Command.Name),
			zap.Uint64("moderator_id", req.ModeratorID))
		return
	}

	switch req.Command.Name {
	case "queue":
		h.showQueue(ctx, req)
	case "next":
		h.showNext(ctx, req)
	case "view":
		h.view(ctx, req)
	case "search":
		h.search(ctx, req)
	case "profile":
		h.showProfile(ctx, req)
	case "action":
		h.action(ctx, req)
	case "export":
		h.exportAll(ctx, req)
	case "save":
		h.save(ctx, req)
	case "help":
		h.reply(ctx, req, render.Help())
	default:
		h.logger.Debug("Unknown command", zap.String("command", req.Command.Name))
	}
}

func (h *Handler) reply(ctx context.Context, req Request, msg discord.MessageCreate) uint64 {
	id, err := h.platform.Send(ctx, req.ChannelID, msg)
	if err != nil {
		h.logger.Error("Failed to send command reply",
			zap.String("command", req.Command.Name),
			zap.Uint64("channel_id", req.ChannelID),
			zap.Error(err))
		return 0
	}
	return id
}

func (h *Handler) say(ctx context.Context, req Request, text string) {
	h.reply(ctx, req, render.Text(text))
}

// current returns the selected case, replying when there is none.
func (h *Handler) current(ctx context.Context, req Request) (*types.ModerationCase, bool) {
	c, err := h.queue.Current()
	if err != nil {
		if !errors.Is(err, moderation.ErrNoCaseSelected) {
			h.logger.Error("Failed to get current case", zap.Error(err))
		}
		h.say(ctx, req, msgNoSelection)
		return nil, false
	}
	return c, true
}

func (h *Handler) showQueue(ctx context.Context, req Request) {
	if h.queue.Len() == 0 {
		h.say(ctx, req, msgNoReports)
		return
	}

	pending := h.queue.Pending()
	if len(pending) == 0 {
		h.say(ctx, req, msgNoPending)
		return
	}

	h.reply(ctx, req, render.Queue(pending))
}

func (h *Handler) showNext(ctx context.Context, req Request) {
	if h.queue.Len() == 0 {
		h.say(ctx, req, msgNoReports)
		return
	}

	c, err := h.queue.Next()
	if err != nil {
		h.say(ctx, req, msgNoPending)
		return
	}

	h.reply(ctx, req, render.Case(c))
}

func (h *Handler) view(ctx context.Context, req Request) {
	c, ok := h.current(ctx, req)
	if !ok {
		return
	}

	switch req.Command.Arg(0) {
	case "":
		h.say(ctx, req, msgViewUsage)
	case "thread":
		if c.Message.ID == 0 {
			h.say(ctx, req, msgNoMessage)
			return
		}

		messages, err := h.platform.History(ctx, c.Message.ChannelID, c.Message.ID, threadLimit)
		if err != nil {
			h.say(ctx, req, "Error retrieving message thread: "+err.Error())
			return
		}

		h.reply(ctx, req, render.Thread(c, messages))
	case "message":
		if c.Message.ID == 0 {
			h.say(ctx, req, msgNoMessage)
			return
		}

		h.reply(ctx, req, render.ReportedMessage(c))
	default:
		h.say(ctx, req, msgViewUnknown)
	}
}

func (h *Handler) search(ctx context.Context, req Request) {
	c, ok := h.current(ctx, req)
	if !ok {
		return
	}

	keywords := req.Command.Args
	if len(keywords) == 0 {
		h.say(ctx, req, msgSearchUsage)
		return
	}

	messages, err := h.platform.History(ctx, c.Message.ChannelID, c.Message.ID, searchLimit)
	if err != nil {
		h.say(ctx, req, "Error searching messages: "+err.Error())
		return
	}

	var matches []types.Message
	for _, msg := range messages {
		if msg.AuthorID != c.ReportedUserID {
			continue
		}

		text := strings.ToLower(msg.Content)
		for _, keyword := range keywords {
			if strings.Contains(text, keyword) {
				matches = append(matches, msg)
				break
			}
		}
	}

	if len(matches) == 0 {
		h.say(ctx, req, "No messages found containing the keywords: "+strings.Join(keywords, ", "))
		return
	}

	h.reply(ctx, req, render.SearchResults(keywords, matches))
}

func (h *Handler) showProfile(ctx context.Context, req Request) {
	raw := req.Command.Arg(0)
	if raw == "" {
		h.say(ctx, req, msgProfileUsage)
		return
	}

	userID, err := strconv.ParseUint(strings.Trim(raw, "<@!>"), 10, 64)
	if err != nil {
		h.say(ctx, req, msgProfileBadID)
		return
	}

	profile, ok := h.risks.Profile(userID)
	if !ok {
		h.say(ctx, req, fmt.Sprintf("No profile data found for user ID: %d", userID))
		return
	}

	name, err := h.platform.UserName(ctx, userID)
	if err != nil {
		h.logger.Debug("Failed to look up user name", zap.Uint64("user_id", userID), zap.Error(err))
		name = msgUnknownUser
	}

	h.reply(ctx, req, render.Profile(name, profile, escalation.Evaluate(profile)))
}

func (h *Handler) exportAll(ctx context.Context, req Request) {
	result, err := h.exporter.ExportAll(ctx, h.risks.Profiles())
	if err != nil {
		h.logger.Error("Export failed", zap.Error(err))
		h.say(ctx, req, "❌ Export failed: "+err.Error())
		return
	}

	var b strings.Builder
	b.WriteString("📁 **Data exported successfully!** Files written:\n")
	fmt.Fprintf(&b, "• `%s` - Daily flagged messages\n", exportCSV.ConversationLogName(h.now()))
	fmt.Fprintf(&b, "• `%s` - Complete user data\n", filepath.Base(result.ProfilesPath))
	fmt.Fprintf(&b, "• `%s` - Summary of high-risk users\n", filepath.Base(result.ReportPath))
	fmt.Fprintf(&b, "• `%s` - Queryable snapshot", filepath.Base(result.DatabasePath))

	h.say(ctx, req, b.String())
}

func (h *Handler) save(ctx context.Context, req Request) {
	if _, err := h.exporter.SaveProfiles(h.risks.Profiles()); err != nil {
		h.logger.Error("Save failed", zap.Error(err))
		h.say(ctx, req, "❌ Save failed: "+err.Error())
		return
	}

	h.say(ctx, req, msgSaved)
}
