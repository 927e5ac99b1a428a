package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPersonal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	_, err := db.Storage.UpsertPersonalPattern(ctx, "alice", "NETFLIX*", "Entertainment", now)
	require.NoError(t, err)
	_, err = db.Storage.UpsertPersonalPattern(ctx, "alice", "NETFLIX*", "Entertainment", now)
	require.NoError(t, err)
	_, err = db.Storage.UpsertPersonalPattern(ctx, "alice", "SINPE JUAN*", "Family", now)
	require.NoError(t, err)
	for _, rec := range []*model.EmbeddingRecord{
		{OwnerScope: "alice", NormalizedText: "NETFLIX COM", CategoryID: "Entertainment", Vector: []float32{1, 0}},
		{OwnerScope: model.GlobalScope, NormalizedText: "NETFLIX COM", CategoryID: "Entertainment", Vector: []float32{1, 0}},
		{OwnerScope: model.GlobalScope, NormalizedText: "SPOTIFY", CategoryID: "Entertainment", Vector: []float32{0, 1}},
	} {
		require.NoError(t, db.Storage.InsertEmbedding(ctx, rec))
	}

	var out bytes.Buffer
	require.NoError(t, listPersonal(ctx, db.Storage, &out, "alice"))
	got := out.String()
	assert.Contains(t, got, "NETFLIX*")
	assert.Contains(t, got, "SINPE JUAN*")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("NETFLIX*")), bytes.Index(out.Bytes(), []byte("SINPE JUAN*")),
		"most confirmed first")
	assert.Contains(t, got, "Embedding examples: 1 for alice, 2 global")

	out.Reset()
	require.NoError(t, listPersonal(ctx, db.Storage, &out, "bob"))
	assert.Contains(t, out.String(), "No personal patterns for bob.")
	assert.Contains(t, out.String(), "0 for bob, 2 global")
}
