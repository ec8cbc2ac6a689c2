package commands

import (
	"fmt"

	"github.com/corpusforge/docrefine/internal/clean"
	"github.com/corpusforge/docrefine/internal/config"
	"github.com/corpusforge/docrefine/internal/ingest"
	"github.com/corpusforge/docrefine/internal/llm"
	"github.com/corpusforge/docrefine/internal/observability"
	"github.com/corpusforge/docrefine/internal/pipeline"
	"github.com/corpusforge/docrefine/internal/prune"
	"github.com/corpusforge/docrefine/internal/refine"
	"github.com/corpusforge/docrefine/internal/segment"
)

// loadConfig loads configuration honoring the --config and --verbose flags.
func loadConfig() (*config.Config, *observability.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Observability.LogLevel
	if verbose {
		level = "debug"
	}
	logger := observability.New(observability.Config{
		Level:   level,
		Format:  cfg.Observability.LogFormat,
		Service: "docrefine",
	})
	return cfg, logger, nil
}

// buildGenerator constructs the retrying generative capability client.
func buildGenerator(cfg *config.Config, logger *observability.Logger) llm.Generator {
	client := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	return llm.NewRetrying(client, llm.RetryConfig{
		MaxAttempts: cfg.LLM.MaxAttempts,
		BaseDelay:   cfg.LLM.BaseDelay,
	}, logger)
}

// buildSplitter selects the configured sentence splitter provider.
func buildSplitter(cfg *config.Config) (segment.SentenceSplitter, error) {
	if cfg.Segmenter.Provider == "remote" {
		return segment.NewRemoteSplitter(segment.RemoteConfig{
			BaseURL: cfg.Segmenter.BaseURL,
			Timeout: cfg.Segmenter.Timeout,
		})
	}
	return segment.NewLocalSplitter(), nil
}

// buildStages assembles the five pipeline stages from configuration.
func buildStages(cfg *config.Config, logger *observability.Logger) (pipeline.Stages, error) {
	splitter, err := buildSplitter(cfg)
	if err != nil {
		return pipeline.Stages{}, err
	}
	gen := buildGenerator(cfg, logger)

	return pipeline.Stages{
		Extractor: ingest.NewExtractor(logger),
		Cleaner:   clean.New(),
		Segmenter: segment.New(splitter, logger),
		Pruner: prune.New(gen, nil, prune.Config{
			ContextBudget:   cfg.Pruner.ContextBudget,
			SampleSize:      cfg.Pruner.SampleSize,
			MinParagraphs:   cfg.Pruner.MinParagraphs,
			HeadingMaxRunes: cfg.Pruner.HeadingMaxRunes,
		}, logger),
		Refiner: refine.New(gen, refine.Config{
			ChunkSize:          cfg.Refiner.ChunkSize,
			ChunkOverlap:       cfg.Refiner.ChunkOverlap,
			ScoreThreshold:     cfg.Refiner.ScoreThreshold,
			MaxConcurrent:      cfg.Refiner.MaxConcurrent,
			RescoreAfterRepair: cfg.Refiner.RescoreAfterRepair,
		}, logger),
	}, nil
}

// buildPipeline assembles the full pipeline from configuration.
func buildPipeline(cfg *config.Config, logger *observability.Logger) (*pipeline.Pipeline, error) {
	stages, err := buildStages(cfg, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(stages, pipeline.Options{
		WorkDir:                cfg.Pipeline.WorkDir,
		MaxConcurrentDocuments: cfg.Pipeline.MaxConcurrentDocuments,
		SkipExisting:           cfg.Pipeline.SkipExisting,
	}, logger), nil
}
