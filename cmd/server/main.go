package main

import (
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tallybot/aicore/internal/api"
	"github.com/tallybot/aicore/internal/config"
	"github.com/tallybot/aicore/internal/llm"
	"github.com/tallybot/aicore/internal/pipeline"
	"github.com/tallybot/aicore/internal/prompts"
	"github.com/tallybot/aicore/internal/service"
	"github.com/tallybot/aicore/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	extractor, err := llm.NewOpenAI(cfg.OpenAIModel, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	if err != nil {
		slog.Error("Failed to initialize extraction model client", "error", err)
		os.Exit(1)
	}
	loader := prompts.NewLoader()

	// The deterministic hint-phrase parser resolves complex splits unless the
	// model-driven third pass is explicitly enabled.
	var resolver pipeline.ComplexResolver
	if cfg.UseLegacyResolver {
		resolution, err := loader.Load(cfg.ResolutionPromptPath)
		if err != nil {
			slog.Error("Failed to load resolution prompt", "error", err)
			os.Exit(1)
		}
		resolver, err = llm.NewFinalPassResolver(extractor, resolution.System, resolution.Input)
		if err != nil {
			slog.Error("Failed to build final pass resolver", "error", err)
			os.Exit(1)
		}
		slog.Info("Using legacy model-driven split resolver")
	}

	runner := pipeline.NewRunner(extractor, resolver, slog.Default())
	processor := service.NewProcessor(runner, loader, service.PromptPaths{
		Extraction: cfg.ExtractionPromptPath,
		Enrichment: cfg.EnrichmentPromptPath,
	}, slog.Default())

	handler := api.New(processor, api.Defaults{
		ChunkSize:      cfg.ChunkSize,
		ChunkThreshold: cfg.ChunkThreshold,
	}, slog.Default()).Handler()

	// Wrap with h2c so HTTP/2 clients work without TLS
	h2cHandler := h2c.NewHandler(handler, &http2.Server{})

	slog.Info("Server starting", "address", cfg.Bind, "model", cfg.OpenAIModel)
	if err := http.ListenAndServe(cfg.Bind, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
