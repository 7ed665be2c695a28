// Package prompts loads prompt templates and conversation files from disk.
//
// Prompt files are YAML pairs {system, input}; conversation files are the
// JSON export shape {chatroom_name, members, messages}. Parsed results are
// cached with a TTL so repeated runs against the same resources skip the
// parse without ever serving stale edits forever.
package prompts

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"gopkg.in/yaml.v3"

	"github.com/tallybot/aicore/internal/models"
)

const (
	cacheSize = 64
	cacheTTL  = 10 * time.Minute
)

// Prompt is one template pair: the system prompt and the per-request input
// preamble.
type Prompt struct {
	System string `yaml:"system"`
	Input  string `yaml:"input"`
}

// Loader reads and caches prompt templates. Entries are keyed by the MD5 of
// the file content, so an edited file is re-parsed immediately while repeat
// loads of unchanged content hit the cache.
type Loader struct {
	cache *expirable.LRU[string, Prompt]
}

// NewLoader returns a Loader with an empty cache.
func NewLoader() *Loader {
	return &Loader{
		cache: expirable.NewLRU[string, Prompt](cacheSize, nil, cacheTTL),
	}
}

// Load reads the YAML prompt file at path.
func (l *Loader) Load(path string) (Prompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to read prompt file %s: %w", path, err)
	}

	key := contentKey(data)
	if p, ok := l.cache.Get(key); ok {
		return p, nil
	}

	var p Prompt
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Prompt{}, fmt.Errorf("failed to parse prompt file %s: %w", path, err)
	}
	if p.System == "" && p.Input == "" {
		return Prompt{}, fmt.Errorf("prompt file %s has neither system nor input text", path)
	}

	l.cache.Add(key, p)
	return p, nil
}

// Clear drops every cached prompt.
func (l *Loader) Clear() {
	l.cache.Purge()
}

func contentKey(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// conversationFile is the on-disk export shape. Members arrive either as a
// single id->name map or as a list of single-entry maps.
type conversationFile struct {
	ChatroomName string           `json:"chatroom_name"`
	Members      json.RawMessage  `json:"members"`
	Messages     []models.Message `json:"messages"`
}

// LoadConversation reads a conversation JSON file, normalizes the members
// field and prepends the synthetic system message carrying the roster, the
// same preamble the extraction prompts expect.
func LoadConversation(path string) (models.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("failed to read conversation file %s: %w", path, err)
	}

	var file conversationFile
	if err := json.Unmarshal(data, &file); err != nil {
		return models.Conversation{}, fmt.Errorf("failed to parse conversation file %s: %w", path, err)
	}

	members, err := NormalizeMembers(file.Members)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("conversation file %s: %w", path, err)
	}

	conv := models.Conversation{
		ChatroomName: file.ChatroomName,
		Members:      members,
	}
	conv.Messages = append(conv.Messages, SystemPreamble(members))
	conv.Messages = append(conv.Messages, file.Messages...)
	return conv, nil
}

// NormalizeMembers accepts both member shapes and returns a single id->name
// map.
func NormalizeMembers(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}

	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err == nil {
		return asMap, nil
	}

	var asList []map[string]string
	if err := json.Unmarshal(raw, &asList); err == nil {
		combined := make(map[string]string)
		for _, entry := range asList {
			for id, name := range entry {
				combined[id] = name
			}
		}
		return combined, nil
	}

	return nil, fmt.Errorf("members field is neither a map nor a list of maps")
}

// SystemPreamble builds the leading system message announcing the roster.
func SystemPreamble(members map[string]string) models.Message {
	data, _ := json.Marshal(members)
	return models.Message{
		Speaker: models.SystemSpeaker,
		Content: fmt.Sprintf("members: %s", data),
	}
}
