// Package render builds the Discord messages posted to moderators.
package render

import (
	"strconv"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/sentinel/internal/common/utils"
)

// Embed colors.
const (
	ColorRed    = 0xE74C3C
	ColorOrange = 0xE67E22
	ColorYellow = 0xFEE75C
	ColorGold   = 0xF1C40F
	ColorGreen  = 0x2ECC71
	ColorBlue   = 0x3498DB
)

const (
	// maxFieldValue is the longest value Discord accepts for an embed field.
	maxFieldValue = 1024
	// maxFields is the most fields Discord accepts in one embed.
	maxFields = 25

	timeLayout   = "2006-01-02 15:04"
	noContent    = "(No content)"
	unknownValue = "Unknown"
)

// Text wraps plain content.
func Text(content string) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContent(content).
		SetAllowedMentions(&discord.AllowedMentions{}).
		Build()
}

func embedMessage(embed discord.Embed) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		Build()
}

func percent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func content(s string) string {
	return utils.Fallback(utils.Truncate(s, maxFieldValue), noContent)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return unknownValue
	}
	return t.UTC().Format(timeLayout)
}
