// Package service exposes the two entry points the HTTP boundary calls:
// conversation processing and settlement evaluation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tallybot/aicore/internal/evaluator"
	"github.com/tallybot/aicore/internal/metrics"
	"github.com/tallybot/aicore/internal/models"
	"github.com/tallybot/aicore/internal/pipeline"
	"github.com/tallybot/aicore/internal/prompts"
)

// PromptPaths locates the templates for the runner's two model passes.
type PromptPaths struct {
	Extraction string
	Enrichment string
}

// Processor wires prompt loading and the extraction pipeline behind the
// boundary-facing entry points. Safe for concurrent use.
type Processor struct {
	runner *pipeline.Runner
	loader *prompts.Loader
	paths  PromptPaths
	logger *slog.Logger
}

func NewProcessor(runner *pipeline.Runner, loader *prompts.Loader, paths PromptPaths, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{runner: runner, loader: loader, paths: paths, logger: logger}
}

// Process runs one conversation through the pipeline. It returns
// pipeline.ErrNoSettlement when no stage yields a usable item.
func (p *Processor) Process(ctx context.Context, conv models.Conversation, opts pipeline.Options) ([]models.SettlementRecord, error) {
	pr, err := p.loadPrompts()
	if err != nil {
		return nil, err
	}
	return p.runner.Run(ctx, conv, pr, opts)
}

// ProcessFile loads a conversation export from disk and processes it. The
// prompt templates and the conversation file are independent static
// resources, so they load concurrently before the pipeline starts.
func (p *Processor) ProcessFile(ctx context.Context, path string, opts pipeline.Options) ([]models.SettlementRecord, error) {
	var (
		wg      sync.WaitGroup
		pr      pipeline.Prompts
		prErr   error
		conv    models.Conversation
		convErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		pr, prErr = p.loadPrompts()
	}()
	go func() {
		defer wg.Done()
		conv, convErr = prompts.LoadConversation(path)
	}()
	wg.Wait()

	if prErr != nil {
		return nil, prErr
	}
	if convErr != nil {
		return nil, convErr
	}
	return p.runner.Run(ctx, conv, pr, opts)
}

// Evaluate scores actual settlement records against expected ones.
func (p *Processor) Evaluate(actual, expected []models.SettlementRecord) models.EvaluationResult {
	result := evaluator.Evaluate(actual, expected)
	metrics.EvaluationScore.Observe(result.Score)
	p.logger.Info("evaluation complete",
		"score", result.Score,
		"grade", result.Grade,
		"passed", result.Passed,
		"issues", len(result.Issues))
	return result
}

func (p *Processor) loadPrompts() (pipeline.Prompts, error) {
	extraction, err := p.loader.Load(p.paths.Extraction)
	if err != nil {
		return pipeline.Prompts{}, fmt.Errorf("loading extraction prompt: %w", err)
	}
	enrichment, err := p.loader.Load(p.paths.Enrichment)
	if err != nil {
		return pipeline.Prompts{}, fmt.Errorf("loading enrichment prompt: %w", err)
	}
	return pipeline.Prompts{Extraction: extraction, Enrichment: enrichment}, nil
}
