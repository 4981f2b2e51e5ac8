package conversation

import (
	"strconv"
	"strings"
	"time"

	"github.com/robalyx/sentinel/internal/common/types"
)

const (
	// ClassifyContextSize is how many buffered messages are sent to the classifier.
	ClassifyContextSize = 10
	// MinContextMessages is the smallest buffer that is classified as a conversation.
	MinContextMessages = 2

	conversationBucket = 30 * time.Minute
)

// Format renders messages as "author: text" lines.
func Format(messages []BufferedMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Message.AuthorName+": "+m.Message.Content)
	}

	return strings.Join(lines, "\n")
}

// ClassifierText picks the text to classify for msg given its buffered context.
// Short buffers fall back to the single message.
func ClassifierText(msg types.Message, context []BufferedMessage) string {
	if len(context) < MinContextMessages {
		return msg.Content
	}

	return Format(context)
}

// ID groups messages from one author in one channel into 30 minute buckets.
// The bucket is taken from the earliest context message when there is more than one.
func ID(msg types.Message, context []BufferedMessage) string {
	start := msg.CreatedAt
	if len(context) > 1 {
		start = context[0].Message.CreatedAt
	}

	bucket := start.Unix() / int64(conversationBucket/time.Second)

	return strconv.FormatUint(msg.ChannelID, 10) + "_" +
		strconv.FormatUint(msg.AuthorID, 10) + "_" +
		strconv.FormatInt(bucket, 10)
}
