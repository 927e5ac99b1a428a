package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertContact_Lifecycle(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.GetContact(ctx, "alice", "8888-1234")
	assert.ErrorIs(t, err, common.ErrNotFound)

	first, err := store.UpsertContact(ctx, "alice", "8888-1234", "Family", 15000, at)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, 1, first.Contact.TransactionCount)

	second, err := store.UpsertContact(ctx, "alice", "8888-1234", "Family", 5000, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, "Family", second.PreviousCategory)
	assert.Equal(t, 2, second.Contact.TransactionCount)
	assert.InDelta(t, 20000, second.Contact.TotalAmount, 1e-9)
	assert.Greater(t, second.Contact.Confidence(), first.Contact.Confidence())

	changed, err := store.UpsertContact(ctx, "alice", "8888-1234", "Housing", 100000, at.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "Family", changed.PreviousCategory)
	assert.Equal(t, "Housing", changed.Contact.DefaultCategoryID)
	assert.Equal(t, 1, changed.Contact.TransactionCount)

	// Other users never see alice's contacts.
	_, err = store.GetContact(ctx, "bob", "8888-1234")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSetContactAlias(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SetContactAlias(ctx, "alice", "8888-1234", "Juan", "family"))

	c, err := store.GetContact(ctx, "alice", "8888-1234")
	require.NoError(t, err)
	assert.Equal(t, "Juan", c.Alias)
	assert.Equal(t, "family", c.RelationshipType)
	assert.Empty(t, c.DefaultCategoryID)
	assert.Zero(t, c.TransactionCount)

	// A later correction keeps the alias.
	out, err := store.UpsertContact(ctx, "alice", "8888-1234", "Family", 500, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Juan", out.Contact.Alias)
	assert.Equal(t, "Family", out.Contact.DefaultCategoryID)
	assert.Equal(t, 1, out.Contact.TransactionCount)

	assert.Error(t, store.SetContactAlias(ctx, "", "8888-1234", "Juan", ""))
}
