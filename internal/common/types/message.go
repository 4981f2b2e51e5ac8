package types

import "time"

// Message is a chat message as seen by the moderation engine.
// IDs are platform snowflakes.
type Message struct {
	ID          uint64    `json:"id"`
	AuthorID    uint64    `json:"authorId"`
	AuthorName  string    `json:"authorName"`
	ChannelID   uint64    `json:"channelId"`
	ChannelName string    `json:"channelName"`
	GuildID     uint64    `json:"guildId"`
	GuildName   string    `json:"guildName"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}
