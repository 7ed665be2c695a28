package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/tallybot/aicore/internal/pipeline"
	"github.com/tallybot/aicore/internal/prompts"
	"github.com/tallybot/aicore/internal/service"
)

type fakeExtractor struct {
	mu        sync.Mutex
	responses []string
	systems   []string
	calls     int
}

func (f *fakeExtractor) Extract(ctx context.Context, systemPrompt, userPrompt, payload string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	f.systems = append(f.systems, systemPrompt)
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return "[]", nil
}

// blockingExtractor parks the first extraction call until released so a test
// can observe the in-flight window.
type blockingExtractor struct {
	inner   *fakeExtractor
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingExtractor) Extract(ctx context.Context, systemPrompt, userPrompt, payload string) (string, error) {
	b.once.Do(func() {
		close(b.started)
		<-b.release
	})
	return b.inner.Extract(ctx, systemPrompt, userPrompt, payload)
}

func newTestAPI(t *testing.T, extractor interface {
	Extract(context.Context, string, string, string) (string, error)
}) *API {
	t.Helper()
	return newTestAPIWithDefaults(t, extractor, Defaults{})
}

func newTestAPIWithDefaults(t *testing.T, extractor interface {
	Extract(context.Context, string, string, string) (string, error)
}, defaults Defaults) *API {
	t.Helper()
	dir := t.TempDir()
	paths := service.PromptPaths{
		Extraction: filepath.Join(dir, "input_prompt.yaml"),
		Enrichment: filepath.Join(dir, "secondary_prompt.yaml"),
	}
	for path, body := range map[string]string{
		paths.Extraction: "system: 정산 항목을 추출하세요.\ninput: 대화 내용\n",
		paths.Enrichment: "system: 장소를 추출하세요.\ninput: 항목 목록\n",
	} {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("writing %s: %v", path, err)
		}
	}
	runner := pipeline.NewRunner(extractor, nil, nil)
	processor := service.NewProcessor(runner, prompts.NewLoader(), paths, nil)
	return New(processor, defaults, nil)
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeFinalResult(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var resp struct {
		FinalResult []map[string]any `json:"final_result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return resp.FinalResult
}

const extractionReply = `[{"speaker": "1", "item": "점심", "amount": 20000, "hint_type": "n분의1"}]`

func TestProcessFlatShape(t *testing.T) {
	extractor := &fakeExtractor{responses: []string{
		extractionReply,
		`[{"item": "점심", "place": "분식집"}]`,
	}}
	a := newTestAPI(t, extractor)

	w := postJSON(t, a.Handler(), "/api/process", `{
		"chatroom_name": "모임방",
		"members": {"1": "김철수", "2": "이영희"},
		"messages": [{"speaker": "1", "message_content": "점심 2만원 나눠 내자"}]
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	records := decodeFinalResult(t, w)
	if len(records) != 1 {
		t.Fatalf("final_result = %d records, want 1", len(records))
	}
	if records[0]["place"] != "분식집" || records[0]["amount"] != float64(20000) {
		t.Errorf("record = %+v", records[0])
	}
}

func TestProcessNestedConversation(t *testing.T) {
	a := newTestAPI(t, &fakeExtractor{responses: []string{extractionReply, "[]"}})

	w := postJSON(t, a.Handler(), "/api/process", `{
		"conversation": {
			"chatroom_name": "모임방",
			"members": [{"1": "김철수"}, {"2": "이영희"}],
			"messages": [{"speaker": "1", "message_content": "점심 2만원"}]
		}
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	records := decodeFinalResult(t, w)
	if len(records) != 1 || records[0]["item"] != "점심" {
		t.Errorf("final_result = %+v", records)
	}
}

func TestProcessBareMessageList(t *testing.T) {
	a := newTestAPI(t, &fakeExtractor{responses: []string{extractionReply, "[]"}})

	w := postJSON(t, a.Handler(), "/api/process", `{
		"conversation": [{"speaker": "1", "message_content": "점심 2만원"}],
		"members": {"1": "김철수", "2": "이영희"}
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if records := decodeFinalResult(t, w); len(records) != 1 {
		t.Errorf("final_result = %+v", records)
	}
}

func TestProcessBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"members":`},
		{name: "missing members", body: `{"messages": [{"speaker": "1", "message_content": "점심"}]}`},
		{name: "no messages", body: `{"members": {"1": "김철수"}}`},
		{name: "scalar members", body: `{"members": 3, "messages": [{"speaker": "1", "message_content": "점심"}]}`},
	}
	a := newTestAPI(t, &fakeExtractor{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, a.Handler(), "/api/process", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestProcessNoSettlement(t *testing.T) {
	a := newTestAPI(t, &fakeExtractor{responses: []string{"[]"}})

	w := postJSON(t, a.Handler(), "/api/process", `{
		"members": {"1": "김철수", "2": "이영희"},
		"messages": [{"speaker": "1", "message_content": "안녕하세요"}]
	}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body = %s", w.Code, w.Body.String())
	}
}

func TestProcessDuplicateInflight(t *testing.T) {
	extractor := &blockingExtractor{
		inner:   &fakeExtractor{responses: []string{extractionReply, "[]"}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	a := newTestAPI(t, extractor)

	body := `{
		"members": {"1": "김철수", "2": "이영희"},
		"messages": [{"speaker": "1", "message_content": "점심 2만원"}]
	}`

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- postJSON(t, a.Handler(), "/api/process", body)
	}()

	<-extractor.started
	if w := postJSON(t, a.Handler(), "/api/process", body); w.Code != http.StatusTooManyRequests {
		t.Errorf("concurrent duplicate status = %d, want 429", w.Code)
	}
	close(extractor.release)

	if w := <-done; w.Code != http.StatusOK {
		t.Errorf("first request status = %d, body = %s", w.Code, w.Body.String())
	}

	// Completed requests free their fingerprint again.
	extractor.inner.mu.Lock()
	extractor.inner.responses = []string{extractionReply, "[]"}
	extractor.inner.calls = 0
	extractor.inner.mu.Unlock()
	if w := postJSON(t, a.Handler(), "/api/process", body); w.Code != http.StatusOK {
		t.Errorf("retry after completion status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestProcessAppliesServerChunkDefaults(t *testing.T) {
	extractor := &fakeExtractor{responses: []string{
		extractionReply,
		"[]",
		"[]",
	}}
	a := newTestAPIWithDefaults(t, extractor, Defaults{ChunkSize: 2, ChunkThreshold: 2})

	// Three user messages exceed the server-level threshold of 2, so the run
	// chunks even though the request sets no chunk fields.
	w := postJSON(t, a.Handler(), "/api/process", `{
		"members": {"1": "김철수", "2": "이영희"},
		"messages": [
			{"speaker": "1", "message_content": "점심 2만원"},
			{"speaker": "2", "message_content": "커피도 마셨지"},
			{"speaker": "1", "message_content": "그건 내가 냈어"}
		]
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if extractor.calls != 3 {
		t.Fatalf("extractor calls = %d, want 2 chunks + 1 enrichment", extractor.calls)
	}
	if !strings.Contains(extractor.systems[0], "청크 1/2") {
		t.Error("first chunk call missing isolation preamble")
	}
	if !strings.Contains(extractor.systems[1], "청크 2/2") {
		t.Error("second chunk call missing isolation preamble")
	}
}

func TestAcquire(t *testing.T) {
	a := newTestAPI(t, &fakeExtractor{})

	if !a.acquire("fp") {
		t.Fatal("first acquire must win")
	}
	if a.acquire("fp") {
		t.Error("second acquire of a held fingerprint must lose")
	}
	if !a.acquire("other") {
		t.Error("unrelated fingerprint must not be blocked")
	}

	a.release("fp")
	if !a.acquire("fp") {
		t.Error("released fingerprint must be acquirable again")
	}
}

func TestProcessFileEndpoint(t *testing.T) {
	a := newTestAPI(t, &fakeExtractor{responses: []string{extractionReply, "[]"}})

	convPath := filepath.Join(t.TempDir(), "conv.json")
	content := `{
		"chatroom_name": "모임방",
		"members": {"1": "김철수", "2": "이영희"},
		"messages": [{"speaker": "1", "message_content": "점심 2만원"}]
	}`
	if err := os.WriteFile(convPath, []byte(content), 0o644); err != nil {
		t.Fatalf("writing conversation: %v", err)
	}

	body, _ := json.Marshal(map[string]string{"conversation_file": convPath})
	w := postJSON(t, a.Handler(), "/api/process-file", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if records := decodeFinalResult(t, w); len(records) != 1 {
		t.Errorf("final_result = %+v", records)
	}
}

func TestProcessFileMissingPath(t *testing.T) {
	a := newTestAPI(t, &fakeExtractor{})
	if w := postJSON(t, a.Handler(), "/api/process-file", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	a := newTestAPI(t, &fakeExtractor{})

	record := `{
		"place": "", "payer": "1", "item": "저녁", "amount": 30000,
		"participants": ["1", "2"],
		"constants": {"1": 0, "2": 0},
		"ratios": {"1": 1, "2": 1}
	}`
	w := postJSON(t, a.Handler(), "/api/evaluate",
		`{"actual": [`+record+`], "expected": [`+record+`]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var result struct {
		Grade  string `json:"grade"`
		Passed bool   `json:"evaluation_passed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if result.Grade != "A+" || !result.Passed {
		t.Errorf("result = %+v", result)
	}
}

func TestSettleEndpoint(t *testing.T) {
	a := newTestAPI(t, &fakeExtractor{})

	w := postJSON(t, a.Handler(), "/api/settle", `{"records": [{
		"place": "", "payer": "1", "item": "저녁", "amount": 30000,
		"participants": ["1", "2", "3"],
		"constants": {"1": 0, "2": 0, "3": 0},
		"ratios": {"1": 1, "2": 1, "3": 1}
	}]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Balances  map[string]int64 `json:"balances"`
		Transfers []struct {
			From   string `json:"from"`
			To     string `json:"to"`
			Amount int64  `json:"amount"`
		} `json:"transfers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Balances["1"] != 20000 {
		t.Errorf("balance[1] = %d, want 20000", resp.Balances["1"])
	}
	if len(resp.Transfers) != 2 {
		t.Errorf("transfers = %+v, want 2", resp.Transfers)
	}
}

func TestSettleRequiresRecords(t *testing.T) {
	a := newTestAPI(t, &fakeExtractor{})
	if w := postJSON(t, a.Handler(), "/api/settle", `{"records": []}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestEvaluateRequiresExpected(t *testing.T) {
	a := newTestAPI(t, &fakeExtractor{})
	if w := postJSON(t, a.Handler(), "/api/evaluate", `{"actual": []}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t, &fakeExtractor{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	a := newTestAPI(t, &fakeExtractor{})
	req := httptest.NewRequest(http.MethodGet, "/api/process", nil)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
