package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/service"
)

// SaveTransaction records a descriptor in the transaction log. Descriptors
// are immutable, so saving an id twice keeps the first copy.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.TransactionDescriptor) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, user_id, raw_text, normalized_text, counterparty_id,
			amount, currency, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, txn.ID, txn.UserID, txn.RawText, txn.NormalizedText, nullString(txn.CounterpartyID),
		txn.Amount, txn.Currency, txn.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a descriptor by id.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.TransactionDescriptor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, raw_text, normalized_text, counterparty_id,
			amount, currency, occurred_at
		FROM transactions
		WHERE id = ?
	`, id)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %q: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ListTransactions returns descriptors from the log, oldest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.TransactionDescriptor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Since != nil {
		where = append(where, "occurred_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := `SELECT id, user_id, raw_text, normalized_text, counterparty_id,
			amount, currency, occurred_at
		FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.TransactionDescriptor
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*model.TransactionDescriptor, error) {
	var (
		txn          model.TransactionDescriptor
		counterparty sql.NullString
		currency     sql.NullString
	)
	if err := row.Scan(
		&txn.ID, &txn.UserID, &txn.RawText, &txn.NormalizedText, &counterparty,
		&txn.Amount, &currency, &txn.Timestamp,
	); err != nil {
		return nil, err
	}
	txn.CounterpartyID = counterparty.String
	txn.Currency = currency.String
	return &txn, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
