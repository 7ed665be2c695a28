// Package pipeline orchestrates the extraction passes that turn a raw group
// conversation into settlement records: message merging, optional chunking
// with cross-chunk dedup, model extraction, currency normalization, place
// enrichment, split classification and resolution, and final assembly.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tallybot/aicore/internal/assembler"
	"github.com/tallybot/aicore/internal/classify"
	"github.com/tallybot/aicore/internal/currency"
	"github.com/tallybot/aicore/internal/hintparse"
	"github.com/tallybot/aicore/internal/identity"
	"github.com/tallybot/aicore/internal/jsonrepair"
	"github.com/tallybot/aicore/internal/llm"
	"github.com/tallybot/aicore/internal/merger"
	"github.com/tallybot/aicore/internal/metrics"
	"github.com/tallybot/aicore/internal/models"
	"github.com/tallybot/aicore/internal/prompts"
)

// ErrNoSettlement is the domain error returned when no extraction stage
// yields a usable item for the conversation.
var ErrNoSettlement = errors.New("no settlement could be produced from the conversation")

const (
	DefaultChunkSize         = 10
	DefaultChunkThreshold    = 15
	DefaultMaxSystemMessages = 1
)

// Strategy selects how chunked conversations move through the passes.
type Strategy int

const (
	// StrategyChained runs the full pass sequence inside each chunk and
	// dedups the finished records across chunks.
	StrategyChained Strategy = iota
	// StrategyStaged runs pass 1 per chunk with item-level dedup, then the
	// later passes once over the combined items.
	StrategyStaged
)

func (s Strategy) String() string {
	if s == StrategyStaged {
		return "staged"
	}
	return "chained"
}

// Options tune one pipeline run. Zero values take the defaults.
type Options struct {
	UseChunking       bool
	ChunkSize         int
	ChunkThreshold    int
	MaxSystemMessages int
	Strategy          Strategy
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkThreshold <= 0 {
		o.ChunkThreshold = DefaultChunkThreshold
	}
	if o.MaxSystemMessages <= 0 {
		o.MaxSystemMessages = DefaultMaxSystemMessages
	}
	return o
}

// Prompts carries the templates for the two model passes the runner drives
// itself. The legacy third-pass resolver holds its own prompt pair.
type Prompts struct {
	Extraction prompts.Prompt
	Enrichment prompts.Prompt
}

// ComplexResolver converts one classified-complex item into a settlement
// record.
type ComplexResolver interface {
	Resolve(ctx context.Context, roster *identity.Roster, item models.ExtractedItem) (models.SettlementRecord, error)
}

// HintResolver is the default ComplexResolver: the deterministic hint-phrase
// parser, no model call involved.
type HintResolver struct{}

func (HintResolver) Resolve(_ context.Context, roster *identity.Roster, item models.ExtractedItem) (models.SettlementRecord, error) {
	return hintparse.New(roster).Parse(item), nil
}

// Runner drives the pipeline for one conversation at a time. It holds no
// per-conversation state; a single Runner serves concurrent requests.
type Runner struct {
	extractor llm.Extractor
	resolver  ComplexResolver
	logger    *slog.Logger
}

// NewRunner wires a runner. A nil resolver selects the hint-phrase parser, a
// nil logger selects slog.Default().
func NewRunner(extractor llm.Extractor, resolver ComplexResolver, logger *slog.Logger) *Runner {
	if resolver == nil {
		resolver = HintResolver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{extractor: extractor, resolver: resolver, logger: logger}
}

// Run processes one conversation end to end.
func (r *Runner) Run(ctx context.Context, conv models.Conversation, pr Prompts, opts Options) ([]models.SettlementRecord, error) {
	opts = opts.withDefaults()

	roster, err := identity.NewRoster(conv.Members)
	if err != nil {
		return nil, fmt.Errorf("invalid member map: %w", err)
	}

	merged := merger.MergeConversation(conv)
	fp := Fingerprint(merged.Messages)
	log := r.logger.With("run_id", uuid.NewString(), "conversation_hash", fp)

	userCount := merged.UserMessageCount()
	if opts.UseChunking && userCount > opts.ChunkThreshold {
		chunks := splitChunks(merged.Messages, opts.ChunkSize, opts.MaxSystemMessages)
		log.Info("processing conversation in chunks",
			"user_messages", userCount,
			"chunks", len(chunks),
			"strategy", opts.Strategy.String())
		if opts.Strategy == StrategyStaged {
			return r.runStaged(ctx, log, roster, fp, chunks, pr)
		}
		return r.runChained(ctx, log, roster, fp, chunks, pr)
	}

	log.Info("processing conversation single-shot", "user_messages", userCount)
	items, err := r.extractItems(ctx, log, merged.Messages, pr.Extraction, "")
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoSettlement
	}
	return r.finish(ctx, log, roster, items, pr)
}

// runChained processes each chunk through the full pass sequence and dedups
// the finished records across chunks.
func (r *Runner) runChained(ctx context.Context, log *slog.Logger, roster *identity.Roster, fp string, chunks []chunk, pr Prompts) ([]models.SettlementRecord, error) {
	dedup := newDedupSet()
	var combined []models.SettlementRecord

	for _, c := range chunks {
		clog := log.With("chunk", c.index+1, "chunks", len(chunks), "chunk_hash", c.hash)

		items, err := r.extractItems(ctx, clog, c.messages, pr.Extraction, chunkIsolation(c.index+1, len(chunks), fp, c.hash))
		if err != nil {
			if isCurrencyViolation(err) {
				return nil, err
			}
			clog.Warn("chunk extraction failed, skipping", "error", err)
			metrics.ChunksProcessed.WithLabelValues("failed").Inc()
			continue
		}
		if len(items) == 0 {
			clog.Info("chunk yielded no items, skipping")
			metrics.ChunksProcessed.WithLabelValues("empty").Inc()
			continue
		}

		records, err := r.finish(ctx, clog, roster, items, pr)
		if err != nil {
			clog.Warn("chunk produced no settlement, skipping", "error", err)
			metrics.ChunksProcessed.WithLabelValues("empty").Inc()
			continue
		}

		added := 0
		for _, rec := range records {
			if dedup.admit(rec.Item, rec.Amount) {
				combined = append(combined, rec)
				added++
			}
		}
		clog.Info("chunk complete", "records", len(records), "added", added, "accumulated", len(combined))
		metrics.ChunksProcessed.WithLabelValues("ok").Inc()
	}

	metrics.DuplicatesSuppressed.Add(float64(dedup.duplicates))
	if len(combined) == 0 {
		return nil, ErrNoSettlement
	}
	return combined, nil
}

// runStaged runs pass 1 per chunk, dedups at the item level, then drives the
// later passes once over the combined items.
func (r *Runner) runStaged(ctx context.Context, log *slog.Logger, roster *identity.Roster, fp string, chunks []chunk, pr Prompts) ([]models.SettlementRecord, error) {
	dedup := newDedupSet()
	var combined []models.ExtractedItem

	for _, c := range chunks {
		clog := log.With("chunk", c.index+1, "chunks", len(chunks), "chunk_hash", c.hash)

		items, err := r.extractItems(ctx, clog, c.messages, pr.Extraction, chunkIsolation(c.index+1, len(chunks), fp, c.hash))
		if err != nil {
			if isCurrencyViolation(err) {
				return nil, err
			}
			clog.Warn("chunk extraction failed, skipping", "error", err)
			metrics.ChunksProcessed.WithLabelValues("failed").Inc()
			continue
		}

		added := 0
		for _, item := range items {
			if dedup.admit(item.Item, item.Amount) {
				combined = append(combined, item)
				added++
			}
		}
		clog.Info("chunk extracted", "items", len(items), "added", added, "accumulated", len(combined))
		metrics.ChunksProcessed.WithLabelValues("ok").Inc()
	}

	metrics.DuplicatesSuppressed.Add(float64(dedup.duplicates))
	if len(combined) == 0 {
		return nil, ErrNoSettlement
	}
	return r.finish(ctx, log, roster, combined, pr)
}

// extractItems runs pass 1 over the messages: model call, JSON repair,
// currency normalization, validity filtering, decode.
func (r *Runner) extractItems(ctx context.Context, log *slog.Logger, messages []models.Message, prompt prompts.Prompt, extraSystem string) ([]models.ExtractedItem, error) {
	raw, err := r.extractor.Extract(ctx, prompt.System+isolationRules+extraSystem, prompt.Input, renderConversation(messages))
	if err != nil {
		metrics.ExtractionFailures.WithLabelValues("extraction").Inc()
		return nil, fmt.Errorf("first pass extraction: %w", err)
	}

	objects := jsonrepair.Repair(raw)
	normalized, err := currency.NormalizeItems(objects)
	if err != nil {
		return nil, fmt.Errorf("currency normalization: %w", err)
	}

	items := decodeItems(normalized)
	log.Info("first pass complete", "raw_objects", len(objects), "valid_items", len(items))
	metrics.StageItems.WithLabelValues("extraction").Add(float64(len(items)))
	return items, nil
}

// finish runs pass 2 and split resolution over the extracted items and
// assembles the final ordered settlement list.
func (r *Runner) finish(ctx context.Context, log *slog.Logger, roster *identity.Roster, items []models.ExtractedItem, pr Prompts) ([]models.SettlementRecord, error) {
	entries, err := r.enrichPlaces(ctx, log, items, pr.Enrichment)
	if err != nil {
		log.Warn("place enrichment failed, continuing without places", "error", err)
	}
	for i := range items {
		items[i].Place = models.PlaceFor(entries, items[i].Item)
	}

	var simple []models.ExtractedItem
	var resolved []models.SettlementRecord
	for _, item := range items {
		if classify.Classify(item) == classify.Simple {
			simple = append(simple, item)
			continue
		}
		rec, err := r.resolver.Resolve(ctx, roster, item)
		if err != nil {
			log.Warn("complex split resolution failed, degrading to equal split", "item", item.Item, "error", err)
			metrics.ExtractionFailures.WithLabelValues("resolution").Inc()
			simple = append(simple, item)
			continue
		}
		resolved = append(resolved, rec)
	}

	out := assembler.New(roster).Assemble(simple, resolved)
	if len(out) == 0 {
		return nil, ErrNoSettlement
	}
	log.Info("settlement assembled", "standard", len(simple), "complex", len(resolved), "total", len(out))
	metrics.StageItems.WithLabelValues("assembled").Add(float64(len(out)))
	return out, nil
}

// enrichPlaces runs pass 2: the model maps each item name to a place.
func (r *Runner) enrichPlaces(ctx context.Context, log *slog.Logger, items []models.ExtractedItem, prompt prompts.Prompt) ([]models.PlaceEntry, error) {
	names := make([]map[string]string, 0, len(items))
	for _, item := range items {
		names = append(names, map[string]string{"item": item.Item})
	}
	payload, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("encoding enrichment payload: %w", err)
	}

	raw, err := r.extractor.Extract(ctx, prompt.System+enrichmentRules, prompt.Input, string(payload))
	if err != nil {
		metrics.ExtractionFailures.WithLabelValues("enrichment").Inc()
		return nil, fmt.Errorf("second pass enrichment: %w", err)
	}

	entries := decodePlaces(jsonrepair.Repair(raw))
	log.Info("second pass complete", "places", len(entries))
	metrics.StageItems.WithLabelValues("enrichment").Add(float64(len(entries)))
	return entries, nil
}

func isCurrencyViolation(err error) bool {
	var ucErr *currency.UnsupportedCurrencyError
	return errors.As(err, &ucErr)
}
