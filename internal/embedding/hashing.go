package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// DefaultHashingDimensions is the vector size of the local embedder.
const DefaultHashingDimensions = 256

// HashingEmbedder is a deterministic local embedder. It hashes whole words
// and padded character trigrams into a fixed number of signed buckets and
// L2-normalizes the result, so texts sharing merchants or name fragments
// land close together without any model.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder creates a hashing embedder with dims buckets.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	return &HashingEmbedder{dims: dims}
}

// Dimensions returns the vector size.
func (h *HashingEmbedder) Dimensions() int {
	return h.dims
}

// Embed never fails; an empty text yields the zero vector.
func (h *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, h.dims)
	for _, word := range strings.Fields(strings.ToUpper(text)) {
		// Whole words weigh more than any single fragment.
		h.add(vec, "w:"+word, 2)

		padded := []rune("#" + word + "#")
		for i := 0; i+3 <= len(padded); i++ {
			h.add(vec, "t:"+string(padded[i:i+3]), 1)
		}
	}

	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	out := make([]float32, h.dims)
	if sum == 0 {
		return out, nil
	}
	n := math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(v / n)
	}
	return out, nil
}

func (h *HashingEmbedder) add(vec []float64, feature string, weight float64) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()

	idx := int(sum % uint64(h.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
