package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
)

// GetCategories retrieves all active categories ordered by name.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, is_active, created_at
		FROM categories
		WHERE is_active = 1
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var (
			cat         model.Category
			description sql.NullString
		)
		if err := rows.Scan(&cat.ID, &cat.Name, &description, &cat.IsActive, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cat.Description = description.String
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

// GetCategory retrieves an active category by id.
func (s *SQLiteStorage) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var (
		cat         model.Category
		description sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, is_active, created_at
		FROM categories
		WHERE id = ? AND is_active = 1
	`, id).Scan(&cat.ID, &cat.Name, &description, &cat.IsActive, &cat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", id, common.ErrUnknownCategory)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	cat.Description = description.String
	return &cat, nil
}

// CreateCategory adds a category; its id is its name.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, name, description string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, is_active, created_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET is_active = 1, description = excluded.description
	`, name, name, description, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return &model.Category{
		ID:          name,
		Name:        name,
		Description: description,
		IsActive:    true,
		CreatedAt:   now,
	}, nil
}
