package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/tallybot/aicore/internal/models"
)

// Fingerprint identifies a conversation by the MD5 of its joined user-message
// contents, truncated to 8 hex characters. System messages are excluded so
// the synthesized roster preamble does not change the identity.
func Fingerprint(messages []models.Message) string {
	contents := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg.IsSystem() {
			continue
		}
		contents = append(contents, msg.Content)
	}
	return contentHash(strings.Join(contents, "\n"))
}

func contentHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:8]
}
