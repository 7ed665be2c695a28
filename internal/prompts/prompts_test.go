package prompts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tallybot/aicore/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadPrompt(t *testing.T) {
	path := writeFile(t, "input_prompt.yaml", "system: |\n  정산 항목을 추출하세요.\ninput: |\n  대화 내용:\n")

	loader := NewLoader()
	p, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.Contains(p.System, "정산 항목") {
		t.Errorf("system = %q, want extraction instruction", p.System)
	}
	if !strings.Contains(p.Input, "대화 내용") {
		t.Errorf("input = %q, want conversation preamble", p.Input)
	}

	// Second load of identical content is served from cache.
	again, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load() second call error = %v", err)
	}
	if again != p {
		t.Errorf("cached load diverged: %+v vs %+v", again, p)
	}
}

func TestLoadPromptEdited(t *testing.T) {
	path := writeFile(t, "p.yaml", "system: first\ninput: first input\n")
	loader := NewLoader()
	if _, err := loader.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("system: second\ninput: second input\n"), 0o644); err != nil {
		t.Fatalf("rewriting prompt: %v", err)
	}
	p, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load() after edit error = %v", err)
	}
	if p.System != "second" {
		t.Errorf("system = %q, want re-parsed second version", p.System)
	}
}

func TestLoadPromptErrors(t *testing.T) {
	loader := NewLoader()

	if _, err := loader.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of missing file succeeded")
	}

	empty := writeFile(t, "empty.yaml", "other_key: value\n")
	if _, err := loader.Load(empty); err == nil {
		t.Error("Load() of prompt without system/input succeeded")
	}
}

func TestLoaderClear(t *testing.T) {
	path := writeFile(t, "p.yaml", "system: s\ninput: i\n")
	loader := NewLoader()
	if _, err := loader.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	loader.Clear()
	if _, err := loader.Load(path); err != nil {
		t.Fatalf("Load() after Clear() error = %v", err)
	}
}

func TestLoadConversation(t *testing.T) {
	content := `{
		"chatroom_name": "모임방",
		"members": {"1": "김철수", "2": "이영희"},
		"messages": [
			{"unique_chat_id": "100", "speaker": "1", "message_content": "저녁 3만원"}
		]
	}`
	path := writeFile(t, "conv.json", content)

	conv, err := LoadConversation(path)
	if err != nil {
		t.Fatalf("LoadConversation() error = %v", err)
	}
	if conv.ChatroomName != "모임방" {
		t.Errorf("chatroom = %q", conv.ChatroomName)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("messages = %d, want system preamble + 1", len(conv.Messages))
	}
	if !conv.Messages[0].IsSystem() {
		t.Error("first message must be the synthesized system preamble")
	}
	if !strings.Contains(conv.Messages[0].Content, "members:") {
		t.Errorf("preamble = %q, want roster announcement", conv.Messages[0].Content)
	}
	if conv.Messages[1].Speaker != "1" {
		t.Errorf("speaker = %q, want 1", conv.Messages[1].Speaker)
	}
}

func TestNormalizeMembers(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{
			name: "single map",
			raw:  `{"1": "김철수", "2": "이영희"}`,
			want: map[string]string{"1": "김철수", "2": "이영희"},
		},
		{
			name: "list of single-entry maps",
			raw:  `[{"1": "김철수"}, {"2": "이영희"}]`,
			want: map[string]string{"1": "김철수", "2": "이영희"},
		},
		{
			name: "empty",
			raw:  "",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMembers(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("NormalizeMembers() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for id, name := range tt.want {
				if got[id] != name {
					t.Errorf("got[%s] = %q, want %q", id, got[id], name)
				}
			}
		})
	}

	if _, err := NormalizeMembers(json.RawMessage(`"just a string"`)); err == nil {
		t.Error("NormalizeMembers() accepted a scalar")
	}
}

func TestSystemPreamble(t *testing.T) {
	msg := SystemPreamble(map[string]string{"1": "김철수"})
	if msg.Speaker != models.SystemSpeaker {
		t.Errorf("speaker = %q, want system", msg.Speaker)
	}
	if !strings.Contains(msg.Content, "김철수") {
		t.Errorf("content = %q, want member name", msg.Content)
	}
}
