package storage

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/google/uuid"
)

// InsertEmbedding appends a record to its owner's partition. Records are
// never deduplicated; repeated texts improve recall.
func (s *SQLiteStorage) InsertEmbedding(ctx context.Context, record *model.EmbeddingRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEmbedding(record); err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (id, owner_scope, normalized_text, category_id, dimensions, vector, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.OwnerScope, record.NormalizedText, record.CategoryID,
		len(record.Vector), encodeFloat32s(record.Vector), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert embedding %s: %w", record.ID, err)
	}
	return nil
}

// SearchEmbeddings returns the topK records of one partition most similar to
// vector by cosine similarity, best first. Records with a different
// dimensionality are skipped.
func (s *SQLiteStorage) SearchEmbeddings(ctx context.Context, scope string, vector []float32, topK int) ([]model.ScoredRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(scope, "scope"); err != nil {
		return nil, err
	}
	if topK <= 0 || len(vector) == 0 {
		return nil, nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, normalized_text, category_id, vector, created_at
		FROM embeddings
		WHERE owner_scope = ? AND dimensions = ?
	`, scope, len(vector))
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	h := &scoredHeap{}
	heap.Init(h)

	// Reusable buffer for decoding vectors to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var (
			rec  model.EmbeddingRecord
			blob []byte
		)
		if err := rows.Scan(&rec.ID, &rec.NormalizedText, &rec.CategoryID, &blob, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding %s: %w", rec.ID, err)
		}

		score := cosine(vector, buf, queryNorm)
		if h.Len() < topK {
			rec.OwnerScope = scope
			heap.Push(h, model.ScoredRecord{EmbeddingRecord: rec, Similarity: score})
		} else if score > (*h)[0].Similarity {
			rec.OwnerScope = scope
			(*h)[0] = model.ScoredRecord{EmbeddingRecord: rec, Similarity: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating embeddings: %w", err)
	}

	results := make([]model.ScoredRecord, h.Len())
	copy(results, *h)
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

// CountEmbeddings returns the number of records in a partition.
func (s *SQLiteStorage) CountEmbeddings(ctx context.Context, scope string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE owner_scope = ?`, scope).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return count, nil
}

// ListEmbeddings returns a partition's records, oldest first, without their
// vectors.
func (s *SQLiteStorage) ListEmbeddings(ctx context.Context, scope string) ([]model.EmbeddingRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(scope, "scope"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, normalized_text, category_id, created_at
		FROM embeddings
		WHERE owner_scope = ?
		ORDER BY created_at ASC, rowid ASC
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.EmbeddingRecord
	for rows.Next() {
		rec := model.EmbeddingRecord{OwnerScope: scope}
		if err := rows.Scan(&rec.ID, &rec.NormalizedText, &rec.CategoryID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating embeddings: %w", err)
	}
	return records, nil
}

// DeleteEmbeddings removes records by id and returns how many were removed.
func (s *SQLiteStorage) DeleteEmbeddings(ctx context.Context, ids []string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM embeddings WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare delete: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, id := range ids {
			result, err := stmt.ExecContext(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to delete embedding %s: %w", id, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			deleted += n
		}
		return nil
	})
	return int(deleted), err
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine computes dot(a,b) / (aNorm * |b|), where aNorm is precomputed.
func cosine(a, b []float32, aNorm float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	if bNormSq == 0 {
		return 0
	}
	return dot / (aNorm * math.Sqrt(bNormSq))
}

// scoredHeap is a min-heap of ScoredRecord ordered by similarity.
type scoredHeap []model.ScoredRecord

func (h scoredHeap) Len() int           { return len(h) }
func (h scoredHeap) Less(i, j int) bool { return h[i].Similarity < h[j].Similarity }
func (h scoredHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x any)        { *h = append(*h, x.(model.ScoredRecord)) }
func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
