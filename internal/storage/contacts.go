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

// GetContact looks up a user's contact for a counterparty.
func (s *SQLiteStorage) GetContact(ctx context.Context, userID, counterpartyID string) (*model.Contact, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(counterpartyID, "counterpartyID"); err != nil {
		return nil, err
	}

	c, err := getContact(ctx, s.db, userID, counterpartyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

func getContact(ctx context.Context, q queryable, userID, counterpartyID string) (*model.Contact, error) {
	var (
		c            model.Contact
		alias        sql.NullString
		relationship sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT user_id, counterparty_id, alias, default_category_id, relationship_type,
			transaction_count, total_amount, updated_at
		FROM contacts
		WHERE user_id = ? AND counterparty_id = ?
	`, userID, counterpartyID).Scan(
		&c.UserID, &c.CounterpartyID, &alias, &c.DefaultCategoryID, &relationship,
		&c.TransactionCount, &c.TotalAmount, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Alias = alias.String
	c.RelationshipType = relationship.String
	return &c, nil
}

// UpsertContact records one confirmed transfer to a counterparty. The first
// confirmation creates the contact with a count of 1; a different category
// replaces the default and restarts the count, mirroring personal patterns.
func (s *SQLiteStorage) UpsertContact(ctx context.Context, userID, counterpartyID, categoryID string, amount float64, at time.Time) (service.ContactUpsert, error) {
	var out service.ContactUpsert
	if err := validateContext(ctx); err != nil {
		return out, err
	}
	for name, v := range map[string]string{"userID": userID, "counterpartyID": counterpartyID, "categoryID": categoryID} {
		if err := validateString(v, name); err != nil {
			return out, err
		}
	}
	at = at.UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		prev, err := getContact(ctx, tx, userID, counterpartyID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			out.Created = true
		case err != nil:
			return fmt.Errorf("failed to read contact: %w", err)
		default:
			out.PreviousCategory = prev.DefaultCategoryID
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO contacts (user_id, counterparty_id, default_category_id, transaction_count, total_amount, updated_at)
			VALUES (?, ?, ?, 1, ?, ?)
			ON CONFLICT(user_id, counterparty_id) DO UPDATE SET
				transaction_count = CASE
					WHEN contacts.default_category_id = excluded.default_category_id
					THEN contacts.transaction_count + 1
					ELSE 1
				END,
				default_category_id = excluded.default_category_id,
				total_amount = contacts.total_amount + excluded.total_amount,
				updated_at = excluded.updated_at
		`, userID, counterpartyID, categoryID, amount, at); err != nil {
			return fmt.Errorf("failed to upsert contact: %w", err)
		}

		updated, err := getContact(ctx, tx, userID, counterpartyID)
		if err != nil {
			return fmt.Errorf("failed to reload contact: %w", err)
		}
		out.Contact = *updated
		return nil
	})
	return out, err
}

// SetContactAlias stores user-supplied metadata for a counterparty. It never
// changes how the contact categorizes.
func (s *SQLiteStorage) SetContactAlias(ctx context.Context, userID, counterpartyID, alias, relationship string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(counterpartyID, "counterpartyID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (user_id, counterparty_id, alias, relationship_type, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, counterparty_id) DO UPDATE SET
			alias = excluded.alias,
			relationship_type = excluded.relationship_type,
			updated_at = excluded.updated_at
	`, userID, counterpartyID, nullString(alias), nullString(relationship), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set contact alias: %w", err)
	}
	return nil
}
