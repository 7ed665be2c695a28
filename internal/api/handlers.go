package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tallybot/aicore/internal/calculator"
	"github.com/tallybot/aicore/internal/metrics"
	"github.com/tallybot/aicore/internal/models"
	"github.com/tallybot/aicore/internal/pipeline"
	"github.com/tallybot/aicore/internal/prompts"
)

// processRequest accepts both wire shapes: a nested conversation (object or
// bare message list) or the flat export fields at the top level.
type processRequest struct {
	Conversation json.RawMessage  `json:"conversation,omitempty"`
	ChatroomName string           `json:"chatroom_name,omitempty"`
	Members      json.RawMessage  `json:"members,omitempty"`
	Messages     []models.Message `json:"messages,omitempty"`

	UseChunking    *bool `json:"use_chunking,omitempty"`
	ChunkSize      int   `json:"chunk_size,omitempty"`
	ChunkThreshold int   `json:"chunk_threshold,omitempty"`
}

type processFileRequest struct {
	ConversationFile string `json:"conversation_file"`
	UseChunking      *bool  `json:"use_chunking,omitempty"`
}

type evaluateRequest struct {
	Actual   []models.SettlementRecord `json:"actual"`
	Expected []models.SettlementRecord `json:"expected"`
}

type settleRequest struct {
	Records []models.SettlementRecord `json:"records"`
}

type settleResponse struct {
	Balances  map[string]int64      `json:"balances"`
	Transfers []calculator.Transfer `json:"transfers"`
}

type processResponse struct {
	FinalResult []models.SettlementRecord `json:"final_result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) handleProcess(w http.ResponseWriter, r *http.Request) {
	a.process(w, r, pipeline.StrategyStaged)
}

func (a *API) handleProcessChain(w http.ResponseWriter, r *http.Request) {
	a.process(w, r, pipeline.StrategyChained)
}

func (a *API) process(w http.ResponseWriter, r *http.Request, strategy pipeline.Strategy) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	conv, err := req.conversation()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(conv.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "conversation has no messages")
		return
	}

	// Reject a conversation already being processed. The fingerprint covers
	// user content only, so retries with a fresh system preamble still match.
	fp := pipeline.Fingerprint(conv.Messages)
	if !a.acquire(fp) {
		metrics.DuplicateRequests.Inc()
		a.logger.Warn("duplicate request rejected", "conversation_hash", fp)
		writeError(w, http.StatusTooManyRequests, "conversation is already being processed")
		return
	}
	defer a.release(fp)

	opts := req.options(strategy, a.defaults)
	records, err := a.processor.Process(r.Context(), conv, opts)
	if err != nil {
		a.writeProcessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{FinalResult: records})
}

func (a *API) handleProcessFile(w http.ResponseWriter, r *http.Request) {
	var req processFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ConversationFile == "" {
		writeError(w, http.StatusBadRequest, "conversation_file is required")
		return
	}

	opts := pipeline.Options{
		UseChunking:    req.UseChunking == nil || *req.UseChunking,
		ChunkSize:      a.defaults.ChunkSize,
		ChunkThreshold: a.defaults.ChunkThreshold,
		Strategy:       pipeline.StrategyStaged,
	}
	records, err := a.processor.ProcessFile(r.Context(), req.ConversationFile, opts)
	if err != nil {
		a.writeProcessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{FinalResult: records})
}

func (a *API) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Expected) == 0 {
		writeError(w, http.StatusBadRequest, "expected records are required")
		return
	}
	writeJSON(w, http.StatusOK, a.processor.Evaluate(req.Actual, req.Expected))
}

// handleSettle turns finished settlement records into net balances and a
// minimal repayment list.
func (a *API) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, "records are required")
		return
	}

	balances, err := calculator.Balances(req.Records)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	transfers, err := calculator.Transfers(req.Records)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if transfers == nil {
		transfers = []calculator.Transfer{}
	}
	writeJSON(w, http.StatusOK, settleResponse{Balances: balances, Transfers: transfers})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) writeProcessError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrNoSettlement) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.logger.Error("processing failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// conversation normalizes the request into the canonical conversation,
// prepending the roster preamble when the messages carry none.
func (req processRequest) conversation() (models.Conversation, error) {
	conv := models.Conversation{ChatroomName: req.ChatroomName, Messages: req.Messages}
	membersRaw := req.Members

	if len(req.Conversation) > 0 {
		trimmed := bytes.TrimSpace(req.Conversation)
		switch {
		case len(trimmed) > 0 && trimmed[0] == '[':
			if err := json.Unmarshal(trimmed, &conv.Messages); err != nil {
				return models.Conversation{}, errors.New("conversation list is not a valid message array")
			}
		default:
			var nested struct {
				ChatroomName string           `json:"chatroom_name"`
				Members      json.RawMessage  `json:"members"`
				Messages     []models.Message `json:"messages"`
			}
			if err := json.Unmarshal(trimmed, &nested); err != nil {
				return models.Conversation{}, errors.New("conversation is neither an object nor a message array")
			}
			conv.ChatroomName = nested.ChatroomName
			conv.Messages = nested.Messages
			if len(nested.Members) > 0 {
				membersRaw = nested.Members
			}
		}
	}

	members, err := prompts.NormalizeMembers(membersRaw)
	if err != nil {
		return models.Conversation{}, err
	}
	if len(members) == 0 {
		return models.Conversation{}, errors.New("members are required")
	}
	conv.Members = members

	if !hasSystemMessage(conv.Messages) {
		conv.Messages = append([]models.Message{prompts.SystemPreamble(members)}, conv.Messages...)
	}
	return conv, nil
}

// options resolves per-request tuning: request fields win, then the server
// defaults, then the pipeline's built-in values.
func (req processRequest) options(strategy pipeline.Strategy, defaults Defaults) pipeline.Options {
	opts := pipeline.Options{
		UseChunking:    req.UseChunking == nil || *req.UseChunking,
		ChunkSize:      req.ChunkSize,
		ChunkThreshold: req.ChunkThreshold,
		Strategy:       strategy,
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaults.ChunkSize
	}
	if opts.ChunkThreshold <= 0 {
		opts.ChunkThreshold = defaults.ChunkThreshold
	}
	return opts
}

func hasSystemMessage(messages []models.Message) bool {
	for _, m := range messages {
		if m.IsSystem() {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
