// Package testutil provides shared helpers for tests that need a migrated
// database.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/normalize"
	"github.com/Veraticus/the-spice-must-learn/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database. The default category
// catalogue is seeded by the migrations; extra names are added on top.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t, "Pets")
func SetupTestDB(t *testing.T, extraCategories ...string) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	for _, name := range extraCategories {
		if _, err := store.CreateCategory(ctx, name, ""); err != nil {
			t.Fatalf("failed to seed category %q: %v", name, err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// Descriptor builds a normalized descriptor for userID. The id is derived
// from the content so repeated calls with the same arguments collide.
func Descriptor(userID, raw string) model.TransactionDescriptor {
	d := model.TransactionDescriptor{
		UserID:         userID,
		RawText:        raw,
		NormalizedText: normalize.Normalize(raw),
		Amount:         10,
		Currency:       "USD",
		Timestamp:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	d.ID = d.GenerateID()
	return d
}

// MustSaveTransaction stores txn in the transaction log or fails the test.
func (db *TestDB) MustSaveTransaction(txn model.TransactionDescriptor) model.TransactionDescriptor {
	db.t.Helper()
	if txn.ID == "" {
		txn.ID = txn.GenerateID()
	}
	if err := db.Storage.SaveTransaction(context.Background(), &txn); err != nil {
		db.t.Fatalf("failed to save transaction %q: %v", txn.ID, err)
	}
	return txn
}
