// Package platform adapts the Discord REST API to the narrow operations the
// moderation engine needs.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/report"
	"github.com/robalyx/sentinel/internal/storage"
	"go.uber.org/zap"
)

// MaxTimeout is the longest communication timeout Discord accepts.
const MaxTimeout = 28 * 24 * time.Hour

// ErrUserNotInGuild is returned when a member lookup finds nobody.
var ErrUserNotInGuild = errors.New("user is not a member of the guild")

// Platform is the set of chat operations used by the moderator commands.
type Platform interface {
	report.Resolver
	Send(ctx context.Context, channelID uint64, msg discord.MessageCreate) (uint64, error)
	AddReaction(ctx context.Context, channelID, messageID uint64, emoji string) error
	MemberName(ctx context.Context, guildID, userID uint64) (string, error)
	UserName(ctx context.Context, userID uint64) (string, error)
	Ban(ctx context.Context, guildID, userID uint64, reason string) error
	Timeout(ctx context.Context, guildID, userID uint64, until time.Time, reason string) error
	History(ctx context.Context, channelID, aroundID uint64, limit int) ([]types.Message, error)
}

// REST implements Platform over a disgo REST client.
type REST struct {
	rest   rest.Rest
	logger *zap.Logger
	now    func() time.Time
}

var _ Platform = (*REST)(nil)

// New creates a REST platform.
func New(client rest.Rest, logger *zap.Logger) *REST {
	return &REST{
		rest:   client,
		logger: logger.Named("platform"),
		now:    time.Now,
	}
}

// ResolveMessage fetches a message by its link components.
func (p *REST) ResolveMessage(ctx context.Context, guildID, channelID, messageID uint64) (types.Message, error) {
	guild, err := p.rest.GetGuild(snowflake.ID(guildID), false, rest.WithCtx(ctx))
	if err != nil {
		if isMissing(err) {
			return types.Message{}, report.ErrGuildNotFound
		}
		return types.Message{}, fmt.Errorf("failed to get guild: %w", err)
	}

	channel, err := p.rest.GetChannel(snowflake.ID(channelID), rest.WithCtx(ctx))
	if err != nil {
		if isMissing(err) {
			return types.Message{}, report.ErrChannelNotFound
		}
		return types.Message{}, fmt.Errorf("failed to get channel: %w", err)
	}

	message, err := p.rest.GetMessage(snowflake.ID(channelID), snowflake.ID(messageID), rest.WithCtx(ctx))
	if err != nil {
		if isMissing(err) {
			return types.Message{}, report.ErrMessageNotFound
		}
		return types.Message{}, fmt.Errorf("failed to get message: %w", err)
	}

	msg := ToMessage(*message, guild.Name, channel.Name())
	msg.GuildID = guildID

	return msg, nil
}

// Send posts a message and returns its ID.
func (p *REST) Send(ctx context.Context, channelID uint64, msg discord.MessageCreate) (uint64, error) {
	message, err := p.rest.CreateMessage(snowflake.ID(channelID), msg, rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}

	return uint64(message.ID), nil
}

// AddReaction reacts to a message with a unicode emoji.
func (p *REST) AddReaction(ctx context.Context, channelID, messageID uint64, emoji string) error {
	if err := p.rest.AddReaction(snowflake.ID(channelID), snowflake.ID(messageID), emoji, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to add reaction: %w", err)
	}

	return nil
}

// MemberName returns the display name of a guild member.
func (p *REST) MemberName(ctx context.Context, guildID, userID uint64) (string, error) {
	member, err := p.rest.GetMember(snowflake.ID(guildID), snowflake.ID(userID), rest.WithCtx(ctx))
	if err != nil {
		if isMissing(err) {
			return "", ErrUserNotInGuild
		}
		return "", fmt.Errorf("failed to get member: %w", err)
	}

	return member.EffectiveName(), nil
}

// UserName returns the username of any user.
func (p *REST) UserName(ctx context.Context, userID uint64) (string, error) {
	user, err := p.rest.GetUser(snowflake.ID(userID), rest.WithCtx(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	return user.Username, nil
}

// Ban bans a user from a guild without deleting their messages.
func (p *REST) Ban(ctx context.Context, guildID, userID uint64, reason string) error {
	err := p.rest.AddBan(snowflake.ID(guildID), snowflake.ID(userID), 0, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}

	return nil
}

// Timeout disables communication for a member until the given time.
func (p *REST) Timeout(ctx context.Context, guildID, userID uint64, until time.Time, reason string) error {
	if limit := p.now().Add(MaxTimeout); until.After(limit) {
		until = limit
	}

	_, err := p.rest.UpdateMember(snowflake.ID(guildID), snowflake.ID(userID), discord.MemberUpdate{
		CommunicationDisabledUntil: json.NewNullablePtr(until),
	}, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to time out user: %w", err)
	}

	return nil
}

// History returns up to limit messages around aroundID, oldest first.
func (p *REST) History(ctx context.Context, channelID, aroundID uint64, limit int) ([]types.Message, error) {
	messages, err := p.rest.GetMessages(snowflake.ID(channelID), snowflake.ID(aroundID), 0, 0, limit, rest.WithCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get channel history: %w", err)
	}

	out := make([]types.Message, 0, len(messages))
	for _, message := range messages {
		out = append(out, ToMessage(message, "", ""))
	}

	slices.SortFunc(out, func(a, b types.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return out, nil
}

// Enforce applies an automatic consequence to the author of msg.
func (p *REST) Enforce(ctx context.Context, msg types.Message, c storage.Consequence) error {
	switch c {
	case storage.ConsequenceSuspend:
		until := p.now().Add(storage.AutoSuspensionDays * 24 * time.Hour)
		return p.Timeout(ctx, msg.GuildID, msg.AuthorID, until, "Engaging in potential child grooming activities.")
	case storage.ConsequenceBan:
		return p.Ban(ctx, msg.GuildID, msg.AuthorID, "Engaging in child grooming activities.")
	case storage.ConsequenceReportToLaw:
		return p.Ban(ctx, msg.GuildID, msg.AuthorID, "Presenting an immediate danger to the safety of children.")
	case storage.ConsequenceNone:
	}

	return nil
}

// ToMessage converts a Discord message. Names the message does not carry are
// taken from the arguments.
func ToMessage(m discord.Message, guildName, channelName string) types.Message {
	msg := types.Message{
		ID:          uint64(m.ID),
		AuthorID:    uint64(m.Author.ID),
		AuthorName:  m.Author.Username,
		ChannelID:   uint64(m.ChannelID),
		ChannelName: channelName,
		GuildName:   guildName,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
	}
	if m.GuildID != nil {
		msg.GuildID = uint64(*m.GuildID)
	}

	return msg
}

// isMissing reports whether a REST error means the resource is gone or hidden.
func isMissing(err error) bool {
	var restErr *rest.Error
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return false
	}

	switch restErr.Response.StatusCode {
	case http.StatusNotFound, http.StatusForbidden:
		return true
	default:
		return false
	}
}
