package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/google/uuid"
)

// SaveCorrection appends a correction to the audit log.
func (s *SQLiteStorage) SaveCorrection(ctx context.Context, correction *model.Correction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if correction == nil {
		return fmt.Errorf("%w: correction", ErrNilParameter)
	}
	if err := validateString(correction.UserID, "userID"); err != nil {
		return err
	}
	if err := validateString(correction.CategoryID, "categoryID"); err != nil {
		return err
	}

	if correction.ID == "" {
		correction.ID = uuid.NewString()
	}
	if correction.CreatedAt.IsZero() {
		correction.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO corrections (id, transaction_id, user_id, category_id, pattern, normalized_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, correction.ID, nullString(correction.TransactionID), correction.UserID,
		correction.CategoryID, correction.PatternText, correction.NormalizedText, correction.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save correction: %w", err)
	}
	return nil
}

// ListCorrections returns a user's most recent corrections first.
func (s *SQLiteStorage) ListCorrections(ctx context.Context, userID string, limit int) ([]model.Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, user_id, category_id, pattern, normalized_text, created_at
		FROM corrections
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Correction
	for rows.Next() {
		var (
			c     model.Correction
			txnID sql.NullString
		)
		if err := rows.Scan(&c.ID, &txnID, &c.UserID, &c.CategoryID, &c.PatternText, &c.NormalizedText, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		c.TransactionID = txnID.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating corrections: %w", err)
	}
	return out, nil
}

// AgreeingTexts returns the distinct corrected texts under pattern from users
// whose current vote on pattern is categoryID. Corrections a user later
// changed their vote away from are left out.
func (s *SQLiteStorage) AgreeingTexts(ctx context.Context, pattern, categoryID string) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}
	if err := validateString(categoryID, "categoryID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.normalized_text
		FROM corrections c
		JOIN proposal_votes v
			ON v.pattern = c.pattern AND v.user_id = c.user_id AND v.category_id = c.category_id
		WHERE c.pattern = ? AND c.category_id = ? AND c.normalized_text <> ''
		ORDER BY c.normalized_text
	`, pattern, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agreeing corrections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("failed to scan correction text: %w", err)
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating corrections: %w", err)
	}
	return texts, nil
}
