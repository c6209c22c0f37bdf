package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/config/env"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/factory"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragchat/internal/chunker"
	"github.com/custodia-labs/ragchat/internal/core/services"
	"github.com/custodia-labs/ragchat/internal/loaders/builtin"
	"github.com/custodia-labs/ragchat/internal/loaders/pdf"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// load builds the services a command asked for. Settings resolve from
// config.toml and the environment; the rest is created from them.
func load(_ context.Context, opts cli.LoadOptions) (*cli.Runtime, error) {
	env.LoadWorkingDir()

	store, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	dir := filepath.Dir(store.Path())

	envPath := opts.EnvFile
	if envPath == "" {
		envPath = filepath.Join(dir, ".env")
	}
	secrets, err := env.NewSecretStore(envPath)
	if err != nil {
		return nil, err
	}

	settingsService := services.NewSettingsService(store, secrets)
	rt := &cli.Runtime{Settings: settingsService}
	if opts.Need < cli.NeedIndex {
		return rt, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("resolve settings: %w", err)
	}
	if opts.ChunkSize > 0 {
		settings.Chunking.Size = opts.ChunkSize
	}
	if opts.Overlap != nil {
		settings.Chunking.Overlap = *opts.Overlap
	}

	svcs, err := factory.Create(*settings, factory.Options{NeedLLM: opts.Need >= cli.NeedChat})
	if err != nil {
		return nil, err
	}

	splitter, err := chunker.New(
		chunker.WithChunkSize(settings.Chunking.Size),
		chunker.WithOverlap(settings.Chunking.Overlap),
	)
	if err != nil {
		svcs.Close()
		return nil, err
	}

	index, err := services.NewIndexManager(svcs.Vector, svcs.Embedding, *settings)
	if err != nil {
		svcs.Close()
		return nil, err
	}

	registry := builtin.NewRegistry()
	rt.Index = index
	rt.Ingest = services.NewIngestService(registry, splitter, index, settings.Retrieval.Namespace)
	rt.Supports = registry.Supports
	rt.Close = svcs.Close
	rt.Warnings = svcs.Warnings
	if err := pdf.CheckAvailable(); err != nil {
		rt.Warnings = append(rt.Warnings, fmt.Sprintf("PDF files will be skipped: %v. %s", err, pdf.InstallInstructions()))
	}

	rt.Check = func(ctx context.Context) []cli.CheckResult {
		var results []cli.CheckResult
		for _, r := range factory.Check(ctx, svcs, settings.Vector.Index) {
			results = append(results, cli.CheckResult{Component: r.Component, Name: r.Name, Err: r.Err})
		}
		return append(results, cli.CheckResult{Component: "loader", Name: "pdftotext", Err: pdf.CheckAvailable()})
	}

	if svcs.LLM != nil {
		engine := services.NewChatEngine(index, svcs.LLM, *settings)
		prompts, err := file.NewPromptStore(filepath.Join(dir, "prompts"), services.DefaultPrompts())
		if err != nil {
			logger.Warn("Using built-in prompts: %v", err)
		} else {
			engine.SetPromptStore(prompts)
		}
		rt.Chat = engine
	}
	return rt, nil
}
