// Package merger collapses consecutive messages from the same speaker into
// one logical utterance before extraction.
//
// Messengers deliver one thought as several short messages; joining a run
// into a single message gives the extraction model the full context of the
// utterance. System messages are never merged, not even with each other.
package merger

import (
	"strings"

	"github.com/tallybot/aicore/internal/models"
)

// Separator joins the contents of a merged run.
const Separator = "\n"

// MergeMessages returns a new slice where every run of >=2 consecutive
// messages from the same non-system speaker is merged into one message.
//
// The merged message keeps the first message's Timestamp as start time and
// records the last message's timestamp as EndTimestamp. If the run spans
// distinct UniqueChatIDs the merged id becomes "{first}-{last}". Input
// messages are never mutated.
func MergeMessages(messages []models.Message) []models.Message {
	if len(messages) == 0 {
		return []models.Message{}
	}

	merged := make([]models.Message, 0, len(messages))
	var run []models.Message

	flush := func() {
		if len(run) == 0 {
			return
		}
		merged = append(merged, mergeRun(run))
		run = nil
	}

	for _, msg := range messages {
		if msg.IsSystem() {
			flush()
			merged = append(merged, msg)
			continue
		}
		if len(run) > 0 && run[len(run)-1].Speaker != msg.Speaker {
			flush()
		}
		run = append(run, msg)
	}
	flush()

	return merged
}

// MergeConversation merges the conversation's messages; all other fields pass
// through unchanged.
func MergeConversation(conv models.Conversation) models.Conversation {
	conv.Messages = MergeMessages(conv.Messages)
	return conv
}

func mergeRun(run []models.Message) models.Message {
	out := run[0]
	if len(run) == 1 {
		return out
	}

	parts := make([]string, len(run))
	for i, m := range run {
		parts[i] = m.Content
	}
	out.Content = strings.Join(parts, Separator)

	last := run[len(run)-1]
	if last.Timestamp != "" {
		out.EndTimestamp = last.Timestamp
	}
	if out.UniqueChatID != "" && last.UniqueChatID != "" && out.UniqueChatID != last.UniqueChatID {
		out.UniqueChatID = out.UniqueChatID + "-" + last.UniqueChatID
	}
	return out
}
