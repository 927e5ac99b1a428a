package model

import "time"

// GlobalScope is the owner scope of the shared embedding partition.
const GlobalScope = "GLOBAL"

// EmbeddingRecord is one confirmed categorization event in vector form.
type EmbeddingRecord struct {
	CreatedAt      time.Time
	ID             string
	OwnerScope     string
	NormalizedText string
	CategoryID     string
	Vector         []float32
}

// ScoredRecord is an EmbeddingRecord with its similarity to a query.
type ScoredRecord struct {
	EmbeddingRecord
	Similarity float64
}
