package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
)

// GetActiveRules retrieves the active rule table in evaluation order.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, position, name, pattern, is_regex, category_id,
			confidence, is_active, created_at
		FROM rules
		WHERE is_active = 1
		ORDER BY position ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		var rule model.Rule
		if err := rows.Scan(
			&rule.ID, &rule.Position, &rule.Name, &rule.Pattern, &rule.IsRegex,
			&rule.CategoryID, &rule.Confidence, &rule.IsActive, &rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// CreateRule appends a rule to the end of the table.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM rules`).Scan(&next); err != nil {
			return fmt.Errorf("failed to get next rule position: %w", err)
		}
		rule.Position = next
		rule.IsActive = true
		return insertRule(ctx, tx, rule)
	})
}

// ReplaceRules swaps the whole rule table atomically, keeping slice order.
func (s *SQLiteStorage) ReplaceRules(ctx context.Context, rules []model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rules`); err != nil {
			return fmt.Errorf("failed to clear rules: %w", err)
		}
		for i := range rules {
			rules[i].Position = i
			rules[i].IsActive = true
			if err := insertRule(ctx, tx, &rules[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertRule(ctx context.Context, q queryable, rule *model.Rule) error {
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	result, err := q.ExecContext(ctx, `
		INSERT INTO rules (position, name, pattern, is_regex, category_id, confidence, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rule.Position, rule.Name, rule.Pattern, rule.IsRegex, rule.CategoryID,
		rule.Confidence, rule.IsActive, rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}
	rule.ID = int(id)
	return nil
}
