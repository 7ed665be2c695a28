package pipeline

import (
	"strings"

	"github.com/tallybot/aicore/internal/models"
)

// chunk is one contiguous window of user messages, with the preserved system
// preamble prepended so every window carries the roster context.
type chunk struct {
	index    int
	messages []models.Message
	hash     string
}

// splitChunks separates at most maxSystem leading system messages from the
// stream, partitions the remaining user messages into contiguous windows of
// at most chunkSize, and prepends the preserved system messages to each
// window. Order is preserved and windows never overlap.
func splitChunks(messages []models.Message, chunkSize, maxSystem int) []chunk {
	var system, user []models.Message
	for _, msg := range messages {
		if msg.IsSystem() && len(system) < maxSystem {
			system = append(system, msg)
		} else {
			user = append(user, msg)
		}
	}

	var chunks []chunk
	for start := 0; start < len(user); start += chunkSize {
		end := start + chunkSize
		if end > len(user) {
			end = len(user)
		}
		window := user[start:end]

		var contents []string
		for _, msg := range window {
			contents = append(contents, msg.Content)
		}

		combined := make([]models.Message, 0, len(system)+len(window))
		combined = append(combined, system...)
		combined = append(combined, window...)

		chunks = append(chunks, chunk{
			index:    len(chunks),
			messages: combined,
			hash:     contentHash(strings.Join(contents, "\n")),
		})
	}
	return chunks
}
