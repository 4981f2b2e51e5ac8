package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/common/utils"
)

// searchResultLimit is the number of matches shown by a keyword search.
const searchResultLimit = 10

func mention(userID uint64) string {
	return "<@" + strconv.FormatUint(userID, 10) + ">"
}

func reporter(c *types.ModerationCase) string {
	if c.Source == types.CaseSourceAutomatic || c.ReporterID == 0 {
		return "🤖 Automatic detection"
	}
	return mention(c.ReporterID)
}

// Queue lists pending cases.
func Queue(pending []*types.ModerationCase) discord.MessageCreate {
	embed := discord.NewEmbedBuilder().
		SetTitle("📋 Report Queue").
		SetColor(ColorBlue)

	for i, c := range pending {
		if i == maxFields {
			embed.SetFooterText(fmt.Sprintf("Showing %d of %d pending reports", maxFields, len(pending)))
			break
		}

		indicator := ""
		if c.Classification != nil {
			indicator = "🤖 "
		}

		embed.AddField(
			fmt.Sprintf("Report #%d: %s%s", i+1, indicator, c.Reason),
			fmt.Sprintf("From: %s | Against: %s | Score: %d", reporter(c), mention(c.ReportedUserID), c.Score),
			false,
		)
	}

	return embedMessage(embed.Build())
}

// Case renders the selected case.
func Case(c *types.ModerationCase) discord.MessageCreate {
	color := ColorOrange
	if c.Score < 30 {
		color = ColorRed
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("📋 Report: "+c.Reason).
		SetDescription(fmt.Sprintf("**Score:** %d/100", c.Score)).
		SetColor(color).
		AddField("👤 Reporter", reporter(c), true).
		AddField("⚠️ Reported User", mention(c.ReportedUserID), true).
		AddField("📝 Details", utils.Fallback(utils.Truncate(c.Details, 1000), "-"), false)

	if c.Classification != nil {
		embed.AddField("🤖 AI Analysis",
			"**Grooming Probability:** "+percent(c.Classification.GroomingProbability)+"\n"+
				"**Model Confidence:** "+percent(c.Classification.Confidence),
			true)
	}

	embed.AddField("📊 Status", string(c.Status), true).
		AddField("⚡ Options",
			"Use `!view thread` to see the full message thread\n"+
				"Use `!view message` to see the reported message\n"+
				"Use `!search [keywords]` to search for keywords\n"+
				"Use `!profile [user_id]` to see user profile\n"+
				"Use `!action [type]` to take action",
			false)

	return embedMessage(embed.Build())
}

// Thread renders the messages around a reported message, marking the reported one.
func Thread(c *types.ModerationCase, messages []types.Message) discord.MessageCreate {
	embed := discord.NewEmbedBuilder().
		SetTitle("💬 Message Thread").
		SetDescription("Channel: " + utils.Fallback(c.Message.ChannelName, unknownValue)).
		SetColor(ColorBlue)

	for i, msg := range messages {
		if i == maxFields {
			break
		}

		prefix := ""
		if msg.ID == c.Message.ID {
			prefix = "⚠️ "
		}

		embed.AddField(
			fmt.Sprintf("%s%s (%s)", prefix, msg.AuthorName, stamp(msg.CreatedAt)),
			content(msg.Content),
			false,
		)
	}

	return embedMessage(embed.Build())
}

// ReportedMessage renders the message a case was filed against.
func ReportedMessage(c *types.ModerationCase) discord.MessageCreate {
	msg := c.Message

	embed := discord.NewEmbedBuilder().
		SetTitle("⚠️ Reported Message").
		SetDescription("From: "+utils.Fallback(msg.AuthorName, unknownValue)).
		SetColor(ColorRed).
		AddField("Content", content(msg.Content), false).
		AddField("Sent At", stamp(msg.CreatedAt), true).
		AddField("Channel", utils.Fallback(msg.ChannelName, unknownValue), true)

	if c.Classification != nil {
		embed.AddField("🤖 AI Analysis",
			"Grooming Probability: "+percent(c.Classification.GroomingProbability)+"\n"+
				"Model Confidence: "+percent(c.Classification.Confidence),
			false)
	}

	return embedMessage(embed.Build())
}

// SearchResults renders messages matching keywords, capped at ten entries.
func SearchResults(keywords []string, matches []types.Message) discord.MessageCreate {
	joined := strings.Join(keywords, ", ")

	embed := discord.NewEmbedBuilder().
		SetTitle("🔍 Messages Containing Keywords").
		SetDescription(fmt.Sprintf("Found %d messages with keywords: %s", len(matches), joined)).
		SetColor(ColorGold)

	for i, msg := range matches {
		if i == searchResultLimit {
			embed.SetFooterText(fmt.Sprintf("Showing %d of %d matching messages", searchResultLimit, len(matches)))
			break
		}

		embed.AddField(fmt.Sprintf("Message %d (%s)", i+1, stamp(msg.CreatedAt)), content(msg.Content), false)
	}

	return embedMessage(embed.Build())
}

// Help lists the moderator commands.
func Help() discord.MessageCreate {
	embed := discord.NewEmbedBuilder().
		SetTitle("🔧 Moderator Commands Help").
		SetColor(ColorBlue).
		AddField("!queue", "Show pending reports in the queue", false).
		AddField("!next", "View the next report in the queue", false).
		AddField("!view thread", "View the full message thread around the reported message", false).
		AddField("!view message", "View just the reported message", false).
		AddField("!search [keywords]", "Search for messages with keywords", false).
		AddField("!profile [user_id]", "Show detailed user risk profile", false).
		AddField("!export", "Export all flagged data to CSV/JSON files", false).
		AddField("!save", "Save current user profiles to file", false).
		AddField("!action ban", "Ban the reported user", false).
		AddField("!action suspend [days]", "Suspend the user for specified days", false).
		AddField("!action increase [score]", "Set a new risk score for the user", false).
		AddField("!action report", "Report to law enforcement", false).
		AddField("!action none", "Take no action and mark report as complete", false).
		AddField("!action skip", "Skip this report for now", false).
		AddField("!help", "Show this help message", false).
		SetFooterText("🤖 Pure ML Detection Active - No Rule-Based Filtering").
		Build()

	return embedMessage(embed)
}
