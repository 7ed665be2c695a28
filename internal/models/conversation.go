package models

// SystemSpeaker marks messages that carry room context rather than chat.
// System messages are never merged and at most one is preserved per chunk.
const SystemSpeaker = "system"

// Message is a single chat message.
type Message struct {
	// UniqueChatID identifies the message in the source chatroom. After
	// merging a run of messages it becomes "{first}-{last}".
	UniqueChatID string `json:"unique_chat_id,omitempty"`

	// Speaker is the member id of the sender, or SystemSpeaker.
	Speaker string `json:"speaker"`

	// Content is the message text. Merged messages join the original
	// contents with "\n" in original order.
	Content string `json:"message_content"`

	// Timestamp is the send time of the (first) message.
	Timestamp string `json:"timestamp,omitempty"`

	// EndTimestamp is the send time of the last message of a merged run.
	EndTimestamp string `json:"end_timestamp,omitempty"`
}

// IsSystem reports whether the message is a system/context message.
func (m Message) IsSystem() bool {
	return m.Speaker == SystemSpeaker
}

// Conversation is the canonical internal representation of one chatroom
// transcript. The boundary layer normalizes both accepted wire shapes
// (bare message list, or an object with chatroom metadata) into this.
type Conversation struct {
	ChatroomName string `json:"chatroom_name,omitempty"`

	// Members maps member id to display name.
	Members map[string]string `json:"members,omitempty"`

	Messages []Message `json:"messages"`
}

// UserMessageCount returns the number of non-system messages.
func (c Conversation) UserMessageCount() int {
	n := 0
	for _, m := range c.Messages {
		if !m.IsSystem() {
			n++
		}
	}
	return n
}
