package bot

import (
	"github.com/robalyx/sentinel/internal/bot/commands"
)

type route int

const (
	routeIgnore route = iota
	routeCommand
	routeClassify
)

// router decides what happens to a guild message.
type router struct {
	moderatorChannelID uint64
	guilds             map[uint64]struct{}
	prefix             string
}

func newRouter(moderatorChannelID uint64, guildIDs []uint64, prefix string) router {
	if prefix == "" {
		prefix = commands.DefaultPrefix
	}

	guilds := make(map[uint64]struct{}, len(guildIDs))
	for _, id := range guildIDs {
		guilds[id] = struct{}{}
	}

	return router{
		moderatorChannelID: moderatorChannelID,
		guilds:             guilds,
		prefix:             prefix,
	}
}

// route sends commands in the moderator channel to the command handler and
// every other message in a monitored guild to the detector. Moderator chatter
// is never classified.
func (r router) route(guildID, channelID uint64, content string) route {
	if r.moderatorChannelID != 0 && channelID == r.moderatorChannelID {
		if _, ok := commands.Parse(content, r.prefix); ok {
			return routeCommand
		}
		return routeIgnore
	}

	if !r.monitored(guildID) {
		return routeIgnore
	}

	return routeClassify
}

// monitored reports whether guildID is watched. An empty allowlist watches every guild.
func (r router) monitored(guildID uint64) bool {
	if len(r.guilds) == 0 {
		return true
	}

	_, ok := r.guilds[guildID]
	return ok
}
