package render

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/common/utils"
	"github.com/robalyx/sentinel/internal/conversation"
	"github.com/robalyx/sentinel/internal/detector"
	"github.com/robalyx/sentinel/internal/escalation"
	"github.com/robalyx/sentinel/internal/risk"
	"github.com/robalyx/sentinel/internal/storage"
)

const previewLength = 200

// AnalysisColor picks the embed color for an analysis, strongest signal first.
func AnalysisColor(result types.ClassificationResult, a escalation.Assessment) int {
	switch {
	case a.Decision.Escalate:
		return ColorRed
	case !result.Failed() && result.GroomingProbability > 0.8 && result.Confidence > 0.8:
		return ColorOrange
	case a.Level == risk.LevelCritical || a.Level == risk.LevelHigh:
		return ColorYellow
	case !result.Failed() && result.GroomingProbability > 0.6:
		return ColorGold
	default:
		return ColorGreen
	}
}

// Analysis renders the per-message analysis posted to moderators.
func Analysis(
	msg types.Message, result types.ClassificationResult, a escalation.Assessment,
	context []conversation.BufferedMessage, now time.Time,
) discord.MessageCreate {
	embed := discord.NewEmbedBuilder().
		SetTitle("🤖 AI Message Analysis").
		SetDescription(fmt.Sprintf("**User:** %s (%d)\n**Channel:** %s", msg.AuthorName, msg.AuthorID, msg.ChannelName)).
		SetColor(AnalysisColor(result, a)).
		SetTimestamp(now).
		AddField("📝 Message Content", "```"+utils.Fallback(utils.Truncate(msg.Content, 1000), "*(No content)*")+"```", false)

	if result.Failed() {
		embed.AddField("🎯 ML Prediction", "❌ Error: "+utils.Truncate(result.Err, 100), true)
	} else {
		var prediction strings.Builder
		prediction.WriteString("**Grooming Probability:** " + percent(result.GroomingProbability) + "\n")
		prediction.WriteString("**Model Confidence:** " + percent(result.Confidence) + "\n")
		if result.IsGrooming {
			prediction.WriteString("**Classification:** ⚠️ Potential Grooming")
		} else {
			prediction.WriteString("**Classification:** ✅ Likely Safe")
		}
		if result.Note != "" {
			prediction.WriteString("\n**Note:** " + utils.Truncate(result.Note, 150))
		}
		embed.AddField("🎯 ML Prediction", prediction.String(), true)
	}

	var profile strings.Builder
	profile.WriteString("**Risk Level:** " + a.Level.Title() + "\n")
	profile.WriteString("**Risk Score:** " + score(a.Score) + "/100\n")
	profile.WriteString(fmt.Sprintf("**Messages:** %d total, %d flagged\n", a.Total, a.Flagged))
	if a.Decision.Escalate {
		profile.WriteString("\n🚨 **ESCALATION:** " + a.Decision.Reason)
	}
	embed.AddField("📊 User Risk Profile", profile.String(), true)

	preview := []rune(conversation.Format(context))
	if len(preview) > previewLength {
		preview = preview[:previewLength]
	}
	embed.AddField("🔍 Analyzed Conversation", "```"+string(preview)+"...```", false)

	return embedMessage(embed.Build())
}

// Escalation renders the alert posted when a user is automatically queued for review.
func Escalation(msg types.Message, result types.ClassificationResult, a escalation.Assessment) discord.MessageCreate {
	embed := discord.NewEmbedBuilder().
		SetTitle("🚨 AUTOMATIC AI ESCALATION").
		SetDescription(fmt.Sprintf("**User %s** has been automatically flagged for review", msg.AuthorName)).
		SetColor(ColorRed).
		AddField("🎯 Reason", a.Decision.Reason, false).
		AddField("📊 Risk Score", score(a.Score)+"/100 ("+a.Level.Title()+")", true).
		AddField("🤖 AI Confidence", percent(result.GroomingProbability)+" grooming probability", true).
		AddField("⚡ Next Steps", "Use `!queue` to review pending reports", false).
		Build()

	return embedMessage(embed)
}

// Consequence renders the alert posted after an automatic consequence.
func Consequence(msg types.Message, c storage.Consequence) discord.MessageCreate {
	var description, reason string

	switch c {
	case storage.ConsequenceSuspend:
		description = "**User " + msg.AuthorName + "** has been suspended for " +
			strconv.Itoa(storage.AutoSuspensionDays) + " days."
		reason = "Engaging in potential child grooming activities."
	case storage.ConsequenceBan:
		description = "**User " + msg.AuthorName + "** has been banned due to violating Terms of Service."
		reason = "Engaging in child grooming activities."
	default:
		description = "**User " + msg.AuthorName + "** has been banned and reported to law enforcement " +
			"for violating Terms of Service."
		reason = "Presenting an immediate danger to the safety of children."
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("🚨 BOT ALERT").
		SetDescription(description).
		SetColor(ColorRed).
		AddField("🎯 Reason", reason, false).
		Build()

	return embedMessage(embed)
}

// ProcessingError renders a classifier failure notice.
func ProcessingError(err error) discord.MessageCreate {
	return Text("❌ **ML Processing Error:** " + utils.Truncate(err.Error(), 200))
}

// Failure renders a notice for a failed storage update or enforcement.
func Failure(msg types.Message, err error) discord.MessageCreate {
	if errors.Is(err, detector.ErrEnforcement) {
		return Text("❌ Error enforcing action on user: " + msg.AuthorName + "\n" + utils.Truncate(err.Error(), 200))
	}

	return Text("Error updating database for user: " + msg.AuthorName)
}
