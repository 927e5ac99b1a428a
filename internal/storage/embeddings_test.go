package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchEmbeddings_OrderAndTopK(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []model.EmbeddingRecord{
		{OwnerScope: "alice", NormalizedText: "A", CategoryID: "Dining", Vector: []float32{1, 0, 0}},
		{OwnerScope: "alice", NormalizedText: "B", CategoryID: "Dining", Vector: []float32{0.9, 0.1, 0}},
		{OwnerScope: "alice", NormalizedText: "C", CategoryID: "Transport", Vector: []float32{0, 1, 0}},
		{OwnerScope: "alice", NormalizedText: "D", CategoryID: "Fees", Vector: []float32{0, 0, 1}},
	}
	for i := range records {
		records[i].CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.InsertEmbedding(ctx, &records[i]))
		assert.NotEmpty(t, records[i].ID)
	}

	results, err := store.SearchEmbeddings(ctx, "alice", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].NormalizedText)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Equal(t, "B", results[1].NormalizedText)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
	assert.Equal(t, "alice", results[0].OwnerScope)

	count, err := store.CountEmbeddings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestSearchEmbeddings_PartitionIsolation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.InsertEmbedding(ctx, &model.EmbeddingRecord{
		OwnerScope: "bob", NormalizedText: "SINPE MARIA", CategoryID: "Housing", Vector: []float32{1, 1},
	}))
	require.NoError(t, store.InsertEmbedding(ctx, &model.EmbeddingRecord{
		OwnerScope: model.GlobalScope, NormalizedText: "NETFLIX", CategoryID: "Entertainment", Vector: []float32{1, 0},
	}))

	results, err := store.SearchEmbeddings(ctx, "alice", []float32{1, 1}, 5)
	require.NoError(t, err)
	assert.Empty(t, results, "another user's records are never visible")

	results, err = store.SearchEmbeddings(ctx, model.GlobalScope, []float32{1, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Entertainment", results[0].CategoryID)
}

func TestSearchEmbeddings_SkipsOtherDimensions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.InsertEmbedding(ctx, &model.EmbeddingRecord{
		OwnerScope: "alice", CategoryID: "Dining", Vector: []float32{1, 0, 0},
	}))

	results, err := store.SearchEmbeddings(ctx, "alice", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = store.SearchEmbeddings(ctx, "alice", []float32{0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results, "zero query vector has no direction")
}

func TestInsertEmbedding_Validation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	assert.ErrorIs(t, store.InsertEmbedding(ctx, nil), ErrNilParameter)
	assert.ErrorIs(t, store.InsertEmbedding(ctx, &model.EmbeddingRecord{OwnerScope: "alice", CategoryID: "Dining"}), ErrInvalidEmbedding)
	assert.ErrorIs(t, store.InsertEmbedding(ctx, &model.EmbeddingRecord{CategoryID: "Dining", Vector: []float32{1}}), ErrInvalidEmbedding)
}

func TestFloat32Encoding(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	out, err := decodeFloat32sInto(nil, encodeFloat32s(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeFloat32sInto(nil, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestListAndDeleteEmbeddings(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []model.EmbeddingRecord{
		{OwnerScope: model.GlobalScope, NormalizedText: "AMAZON PRIME", CategoryID: "Entertainment", Vector: []float32{1, 0}},
		{OwnerScope: model.GlobalScope, NormalizedText: "AMAZON RETAIL", CategoryID: "Shopping", Vector: []float32{0, 1}},
		{OwnerScope: "alice", NormalizedText: "AMAZON PRIME", CategoryID: "Entertainment", Vector: []float32{1, 0}},
	}
	for i := range records {
		records[i].CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.InsertEmbedding(ctx, &records[i]))
	}

	list, err := store.ListEmbeddings(ctx, model.GlobalScope)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "AMAZON PRIME", list[0].NormalizedText)
	assert.Equal(t, model.GlobalScope, list[0].OwnerScope)
	assert.Nil(t, list[0].Vector)

	n, err := store.DeleteEmbeddings(ctx, []string{records[0].ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.DeleteEmbeddings(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := store.CountEmbeddings(ctx, model.GlobalScope)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = store.CountEmbeddings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
