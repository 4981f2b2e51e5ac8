package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouterRoute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		router    router
		guildID   uint64
		channelID uint64
		content   string
		want      route
	}{
		{
			name:      "command in moderator channel",
			router:    newRouter(5, nil, ""),
			guildID:   1,
			channelID: 5,
			content:   "!queue",
			want:      routeCommand,
		},
		{
			name:      "chatter in moderator channel",
			router:    newRouter(5, nil, ""),
			guildID:   1,
			channelID: 5,
			content:   "looking at it now",
			want:      routeIgnore,
		},
		{
			name:      "custom prefix",
			router:    newRouter(5, nil, "?"),
			guildID:   1,
			channelID: 5,
			content:   "?next",
			want:      routeCommand,
		},
		{
			name:      "command outside moderator channel is classified",
			router:    newRouter(5, nil, ""),
			guildID:   1,
			channelID: 6,
			content:   "!queue",
			want:      routeClassify,
		},
		{
			name:      "allowed guild",
			router:    newRouter(5, []uint64{1, 2}, ""),
			guildID:   2,
			channelID: 6,
			content:   "hi",
			want:      routeClassify,
		},
		{
			name:      "guild outside allowlist",
			router:    newRouter(5, []uint64{1, 2}, ""),
			guildID:   3,
			channelID: 6,
			content:   "hi",
			want:      routeIgnore,
		},
		{
			name:      "no moderator channel configured",
			router:    newRouter(0, nil, ""),
			guildID:   3,
			channelID: 0,
			content:   "!queue",
			want:      routeClassify,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.router.route(tt.guildID, tt.channelID, tt.content))
		})
	}
}
