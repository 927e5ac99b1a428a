package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func TestMigrate_Idempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))
	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestInMemoryStorage(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(context.Background()))
	cats, err := store.GetCategories(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, cats)
}

func TestNewSQLiteStorage_Validation(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestTransactionLog(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	txn := &model.TransactionDescriptor{
		ID:             "t1",
		UserID:         "alice",
		RawText:        "SINPE MARIA PEREZ",
		NormalizedText: "SINPE MARIA PEREZ",
		CounterpartyID: "+50688887777",
		Amount:         15000,
		Currency:       "CRC",
		Timestamp:      ts,
	}
	require.NoError(t, store.SaveTransaction(ctx, txn))

	// Descriptors are immutable: a second save with the same id is ignored.
	changed := *txn
	changed.RawText = "SOMETHING ELSE"
	require.NoError(t, store.SaveTransaction(ctx, &changed))

	got, err := store.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "SINPE MARIA PEREZ", got.RawText)
	assert.Equal(t, "+50688887777", got.CounterpartyID)
	assert.Equal(t, "CRC", got.Currency)
	assert.True(t, got.Timestamp.Equal(ts))

	_, err = store.GetTransaction(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, store.SaveTransaction(ctx, &model.TransactionDescriptor{
		ID: "t2", UserID: "bob", RawText: "NETFLIX.COM", Timestamp: ts.Add(time.Hour),
	}))

	all, err := store.ListTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bobs, err := store.ListTransactions(ctx, service.TransactionFilter{UserID: "bob"})
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, "t2", bobs[0].ID)

	assert.ErrorIs(t, store.SaveTransaction(ctx, &model.TransactionDescriptor{ID: "x", RawText: "y"}), ErrInvalidTransaction)
}

func TestCategories(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cat, err := store.GetCategory(ctx, "Entertainment")
	require.NoError(t, err)
	assert.Equal(t, "Entertainment", cat.Name)

	_, err = store.GetCategory(ctx, "Pets")
	assert.ErrorIs(t, err, common.ErrUnknownCategory)

	_, err = store.CreateCategory(ctx, "Pets", "Vet and food")
	require.NoError(t, err)
	cat, err = store.GetCategory(ctx, "Pets")
	require.NoError(t, err)
	assert.Equal(t, "Vet and food", cat.Description)
}

func TestRules(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.ReplaceRules(ctx, []model.Rule{
		{Name: "b", Pattern: "uber", CategoryID: "Transport", Confidence: 0.92},
		{Name: "a", Pattern: "uber eats", CategoryID: "Dining", Confidence: 0.95},
	}))
	extra := &model.Rule{Name: "c", Pattern: "spotify", CategoryID: "Entertainment", Confidence: 0.95}
	require.NoError(t, store.CreateRule(ctx, extra))
	assert.Equal(t, 2, extra.Position)

	rules, err := store.GetActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{rules[0].Name, rules[1].Name, rules[2].Name})

	require.NoError(t, store.ReplaceRules(ctx, nil))
	rules, err = store.GetActiveRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestCorrections(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, cat := range []string{"Family", "Dining"} {
		c := &model.Correction{UserID: "alice", CategoryID: cat, PatternText: "SINPE JUAN*", NormalizedText: "SINPE JUAN PEREZ", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, store.SaveCorrection(ctx, c))
		assert.NotEmpty(t, c.ID)
	}

	list, err := store.ListCorrections(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Dining", list[0].CategoryID)
	assert.Equal(t, "SINPE JUAN PEREZ", list[0].NormalizedText)

	list, err = store.ListCorrections(ctx, "bob", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAgreeingTexts_FollowCurrentVotes(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now()

	correct := func(user, text, category string) {
		t.Helper()
		_, err := store.CastVote(ctx, "NETFLIX*", user, category, now)
		require.NoError(t, err)
		require.NoError(t, store.SaveCorrection(ctx, &model.Correction{
			UserID: user, CategoryID: category, PatternText: "NETFLIX*", NormalizedText: text, CreatedAt: now,
		}))
	}
	correct("alice", "NETFLIX COM", "Entertainment")
	correct("alice", "NETFLIX PREMIUM", "Entertainment")
	correct("bob", "NETFLIX COM", "Entertainment")
	correct("carol", "NETFLIX KIDS", "Entertainment")
	// Carol moves her vote; her earlier correction no longer agrees.
	correct("carol", "NETFLIX KIDS", "Family")
	correct("dave", "NETFLIX DVD", "Utilities")
	require.NoError(t, store.SaveCorrection(ctx, &model.Correction{
		UserID: "erin", CategoryID: "Entertainment", PatternText: "NETFLIX*", CreatedAt: now,
	}))

	texts, err := store.AgreeingTexts(ctx, "NETFLIX*", "Entertainment")
	require.NoError(t, err)
	assert.Equal(t, []string{"NETFLIX COM", "NETFLIX PREMIUM"}, texts)

	texts, err = store.AgreeingTexts(ctx, "NETFLIX*", "Family")
	require.NoError(t, err)
	assert.Equal(t, []string{"NETFLIX KIDS"}, texts)

	texts, err = store.AgreeingTexts(ctx, "HULU*", "Entertainment")
	require.NoError(t, err)
	assert.Empty(t, texts)
}
