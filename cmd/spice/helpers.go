package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-spice-must-learn/internal/config"
	"github.com/Veraticus/the-spice-must-learn/internal/consensus"
	"github.com/Veraticus/the-spice-must-learn/internal/embedding"
	"github.com/Veraticus/the-spice-must-learn/internal/engine"
	"github.com/Veraticus/the-spice-must-learn/internal/learner"
	"github.com/Veraticus/the-spice-must-learn/internal/llm"
	"github.com/Veraticus/the-spice-must-learn/internal/pattern"
	"github.com/Veraticus/the-spice-must-learn/internal/storage"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(appCfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// app wires the engine and its learning side over one database.
type app struct {
	store     *storage.SQLiteStorage
	matcher   *pattern.MatcherImpl
	index     *embedding.Index
	consensus *consensus.Store
	engine    *engine.Engine
	learner   *learner.Learner
	fallback  *llm.Fallback
}

func openApp(ctx context.Context) (*app, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}

	a, err := buildApp(ctx, store, appCfg, slog.Default())
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func buildApp(ctx context.Context, store *storage.SQLiteStorage, cfg config.Config, logger *slog.Logger) (*app, error) {
	rules, err := loadRules(ctx, store, cfg.Rules.File)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewEmbedder(embedding.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	t := cfg.Thresholds
	index := embedding.NewIndex(store, embedder, embedding.Options{
		TopK:          t.TopK,
		Threshold:     t.SimilarityThreshold,
		MaxConfidence: t.MaxConfidence,
	})
	cons := consensus.NewStore(store, consensus.Thresholds{
		MinUsers:      t.ConsensusMinUsers,
		MinShare:      t.ConsensusMinShare,
		MaxConfidence: t.MaxConfidence,
	}, logger)

	a := &app{
		store:     store,
		matcher:   pattern.NewMatcher(rules),
		index:     index,
		consensus: cons,
		learner:   learner.New(store, index, cons, logger),
	}

	deps := engine.Deps{
		Store:     store,
		Rules:     a.matcher,
		Index:     index,
		Consensus: cons,
	}
	if cfg.GenerativeEnabled() {
		client, err := llm.NewClient(llm.Config{
			Provider:    cfg.LLM.Provider,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		a.fallback = llm.NewFallback(client, llm.FallbackOptions{
			MaxInFlight: cfg.LLM.MaxInFlight,
			RateLimit:   cfg.LLM.RateLimit,
			CacheTTL:    cfg.LLM.CacheTTL,
			Timeout:     cfg.LLM.Timeout,
			RetryDelay:  cfg.LLM.RetryDelay,
		}, logger)
		deps.Generative = a.fallback
	}

	a.engine = engine.New(deps, engineConfig(cfg), logger)
	return a, nil
}

func (a *app) Close() error {
	if a.fallback != nil {
		_ = a.fallback.Close()
	}
	return a.store.Close()
}

// loadRules builds the rule table: the rules file, when configured, ahead of
// the stored table, which defaults to the built-in rules while empty.
func loadRules(ctx context.Context, store *storage.SQLiteStorage, file string) ([]pattern.Rule, error) {
	stored, err := store.GetActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if len(stored) == 0 {
		stored = pattern.DefaultRules()
	}
	if file == "" {
		return stored, nil
	}

	fromFile, err := pattern.LoadRulesFile(file)
	if err != nil {
		return nil, err
	}
	return append(fromFile, stored...), nil
}

func engineConfig(cfg config.Config) engine.Config {
	t := cfg.Thresholds
	return engine.Config{
		RuleFloor:           t.RuleFloor,
		PersonalFloor:       t.PersonalFloor,
		ContactFloor:        t.ContactFloor,
		EmbeddingFloor:      t.EmbeddingFloor,
		GlobalFloor:         t.GlobalFloor,
		AcceptanceFloor:     t.AcceptanceFloor,
		GenerativeFloor:     t.GenerativeFloor,
		GenerativeBudgetPct: cfg.Batch.GenerativeBudgetPct,
		Concurrency:         cfg.Batch.Concurrency,
	}
}
