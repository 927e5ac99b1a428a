package model

import "time"

// Category is a budget category a transaction can be assigned to.
type Category struct {
	CreatedAt   time.Time
	ID          string
	Name        string
	Description string
	IsActive    bool
}

// Correction is one audited user correction event.
type Correction struct {
	CreatedAt      time.Time
	ID             string
	TransactionID  string
	UserID         string
	CategoryID     string
	PatternText    string
	NormalizedText string
}
