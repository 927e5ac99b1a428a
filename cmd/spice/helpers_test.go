package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/the-spice-must-learn/internal/config"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/pattern"
	"github.com/Veraticus/the-spice-must-learn/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRules_DefaultsWhenTableEmpty(t *testing.T) {
	db := testutil.SetupTestDB(t)

	rules, err := loadRules(context.Background(), db.Storage, "")
	require.NoError(t, err)
	assert.Len(t, rules, len(pattern.DefaultRules()))
}

func TestLoadRules_StoredTableReplacesDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Storage.CreateRule(ctx, &model.Rule{
		Name: "Gym", Pattern: "smart fit", CategoryID: "Health", Confidence: 0.95,
	}))

	rules, err := loadRules(ctx, db.Storage, "")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "Gym", rules[0].Name)
}

func TestLoadRules_FileRulesComeFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	file := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`rules:
  - name: Netflix family plan
    pattern: netflix
    category: Family
    confidence: 0.99
`), 0o600))

	rules, err := loadRules(context.Background(), db.Storage, file)
	require.NoError(t, err)
	require.Len(t, rules, len(pattern.DefaultRules())+1)
	assert.Equal(t, "Netflix family plan", rules[0].Name)

	r, ok := pattern.NewMatcher(rules).Match(context.Background(), "NETFLIX COM")
	require.True(t, ok)
	assert.Equal(t, "Family", r.CategoryID)
}

func TestLoadRules_MissingFile(t *testing.T) {
	db := testutil.SetupTestDB(t)

	_, err := loadRules(context.Background(), db.Storage, filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestBuildApp_CategorizesWithoutGenerative(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := config.Default()
	cfg.Database.Path = ":memory:"

	a, err := buildApp(context.Background(), db.Storage, cfg, slog.Default())
	require.NoError(t, err)
	assert.Nil(t, a.fallback)

	result, err := a.engine.Categorize(context.Background(), testutil.Descriptor("alice", "UBER *TRIP 4F92A"))
	require.NoError(t, err)
	require.True(t, result.Resolved())
	assert.Equal(t, "Transport", *result.CategoryID)
	assert.Equal(t, model.MethodRule, result.Method)

	result, err = a.engine.Categorize(context.Background(), testutil.Descriptor("alice", "FERRETERIA EL CLAVO"))
	require.NoError(t, err)
	assert.False(t, result.Resolved())
}

func TestBuildApp_WithGenerative(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := config.Default()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = "llama3"

	a, err := buildApp(context.Background(), db.Storage, cfg, slog.Default())
	require.NoError(t, err)
	require.NotNil(t, a.fallback)
	assert.NoError(t, a.fallback.Close())
}

func TestEngineConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Thresholds.AcceptanceFloor = 0.55
	cfg.Batch.Concurrency = 3

	ec := engineConfig(cfg)
	assert.InDelta(t, 0.55, ec.AcceptanceFloor, 1e-9)
	assert.InDelta(t, 0.90, ec.RuleFloor, 1e-9)
	assert.Equal(t, 3, ec.Concurrency)
}
