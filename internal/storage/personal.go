package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/service"
)

// GetPersonalPattern looks up a user's learned category for a generalized pattern.
func (s *SQLiteStorage) GetPersonalPattern(ctx context.Context, userID, pattern string) (*model.PersonalPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}

	p, err := getPersonalPattern(ctx, s.db, userID, pattern)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get personal pattern: %w", err)
	}
	return p, nil
}

func getPersonalPattern(ctx context.Context, q queryable, userID, pattern string) (*model.PersonalPattern, error) {
	var p model.PersonalPattern
	err := q.QueryRowContext(ctx, `
		SELECT user_id, pattern, category_id, times_confirmed, confidence, last_used
		FROM personal_patterns
		WHERE user_id = ? AND pattern = ?
	`, userID, pattern).Scan(
		&p.UserID, &p.PatternText, &p.CategoryID, &p.TimesConfirmed, &p.Confidence, &p.LastUsed,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPersonalPattern records one confirmation. Confirming the stored
// category increments times_confirmed; a different category replaces it and
// resets the count to 1. The increment happens in a single statement so
// concurrent confirmations are never lost.
func (s *SQLiteStorage) UpsertPersonalPattern(ctx context.Context, userID, pattern, categoryID string, at time.Time) (service.PersonalUpsert, error) {
	var out service.PersonalUpsert
	if err := validateContext(ctx); err != nil {
		return out, err
	}
	for name, v := range map[string]string{"userID": userID, "pattern": pattern, "categoryID": categoryID} {
		if err := validateString(v, name); err != nil {
			return out, err
		}
	}
	at = at.UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		prev, err := getPersonalPattern(ctx, tx, userID, pattern)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			out.Created = true
		case err != nil:
			return fmt.Errorf("failed to read personal pattern: %w", err)
		default:
			out.PreviousCategory = prev.CategoryID
		}

		var times int
		err = tx.QueryRowContext(ctx, `
			INSERT INTO personal_patterns (user_id, pattern, category_id, times_confirmed, confidence, last_used, created_at)
			VALUES (?, ?, ?, 1, ?, ?, ?)
			ON CONFLICT(user_id, pattern) DO UPDATE SET
				times_confirmed = CASE
					WHEN personal_patterns.category_id = excluded.category_id
					THEN personal_patterns.times_confirmed + 1
					ELSE 1
				END,
				category_id = excluded.category_id,
				last_used = excluded.last_used
			RETURNING times_confirmed
		`, userID, pattern, categoryID, model.ConfirmationConfidence(1), at, at).Scan(&times)
		if err != nil {
			return fmt.Errorf("failed to upsert personal pattern: %w", err)
		}

		confidence := model.ConfirmationConfidence(times)
		if _, err := tx.ExecContext(ctx, `
			UPDATE personal_patterns SET confidence = ?
			WHERE user_id = ? AND pattern = ?
		`, confidence, userID, pattern); err != nil {
			return fmt.Errorf("failed to update personal confidence: %w", err)
		}

		out.Pattern = model.PersonalPattern{
			UserID:         userID,
			PatternText:    pattern,
			CategoryID:     categoryID,
			TimesConfirmed: times,
			Confidence:     confidence,
			LastUsed:       at,
		}
		return nil
	})
	return out, err
}

// TouchPersonalPattern records that a personal pattern answered a lookup.
func (s *SQLiteStorage) TouchPersonalPattern(ctx context.Context, userID, pattern string, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE personal_patterns SET last_used = ?
		WHERE user_id = ? AND pattern = ?
	`, at.UTC(), userID, pattern)
	if err != nil {
		return fmt.Errorf("failed to touch personal pattern: %w", err)
	}
	return nil
}

// ListPersonalPatterns returns every pattern a user has taught, most used first.
func (s *SQLiteStorage) ListPersonalPatterns(ctx context.Context, userID string) ([]model.PersonalPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, pattern, category_id, times_confirmed, confidence, last_used
		FROM personal_patterns
		WHERE user_id = ?
		ORDER BY times_confirmed DESC, pattern ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list personal patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.PersonalPattern
	for rows.Next() {
		var p model.PersonalPattern
		if err := rows.Scan(&p.UserID, &p.PatternText, &p.CategoryID, &p.TimesConfirmed, &p.Confidence, &p.LastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan personal pattern: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating personal patterns: %w", err)
	}
	return out, nil
}
