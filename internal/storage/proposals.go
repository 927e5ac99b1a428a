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

const proposalColumns = `pattern, category_id, user_count, confidence_score, status,
	approved_by, approved_at, version, created_at`

// GetProposal returns the proposal for a generalized pattern with its vote distribution.
func (s *SQLiteStorage) GetProposal(ctx context.Context, pattern string) (*model.GlobalPatternProposal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}

	p, err := getProposal(ctx, s.db, pattern)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return p, nil
}

func getProposal(ctx context.Context, q queryable, pattern string) (*model.GlobalPatternProposal, error) {
	p, err := scanProposal(q.QueryRowContext(ctx,
		`SELECT `+proposalColumns+` FROM global_proposals WHERE pattern = ?`, pattern))
	if err != nil {
		return nil, err
	}
	dist, err := voteDistribution(ctx, q, pattern)
	if err != nil {
		return nil, err
	}
	p.VoteDistribution = dist
	return p, nil
}

func scanProposal(row scanner) (*model.GlobalPatternProposal, error) {
	var (
		p          model.GlobalPatternProposal
		status     string
		approvedBy sql.NullString
		approvedAt sql.NullTime
	)
	if err := row.Scan(
		&p.PatternText, &p.CategoryID, &p.UserCount, &p.ConfidenceScore, &status,
		&approvedBy, &approvedAt, &p.Version, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = model.ProposalStatus(status)
	p.ApprovedBy = approvedBy.String
	if approvedAt.Valid {
		t := approvedAt.Time
		p.ApprovedAt = &t
	}
	return &p, nil
}

func voteDistribution(ctx context.Context, q queryable, pattern string) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT category_id, COUNT(*)
		FROM proposal_votes
		WHERE pattern = ?
		GROUP BY category_id
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	dist := make(map[string]int)
	for rows.Next() {
		var (
			category string
			count    int
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan votes: %w", err)
		}
		dist[category] = count
	}
	return dist, rows.Err()
}

// CastVote records userID's vote for categoryID on pattern. Each user holds
// one vote per pattern: repeating it changes nothing, a different category
// moves it. The proposal header is written with a compare-and-swap on its
// version, so a concurrent writer surfaces as common.ErrConcurrentUpdate.
func (s *SQLiteStorage) CastVote(ctx context.Context, pattern, userID, categoryID string, at time.Time) (service.VoteOutcome, error) {
	var out service.VoteOutcome
	if err := validateContext(ctx); err != nil {
		return out, err
	}
	for name, v := range map[string]string{"pattern": pattern, "userID": userID, "categoryID": categoryID} {
		if err := validateString(v, name); err != nil {
			return out, err
		}
	}
	at = at.UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO global_proposals (pattern, status, version, created_at, updated_at)
			VALUES (?, 'pending', 0, ?, ?)
			ON CONFLICT(pattern) DO NOTHING
		`, pattern, at, at); err != nil {
			return fmt.Errorf("failed to create proposal: %w", err)
		}

		current, err := getProposal(ctx, tx, pattern)
		if err != nil {
			return fmt.Errorf("failed to read proposal: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO proposal_votes (pattern, user_id, category_id, voted_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(pattern, user_id) DO UPDATE SET
				category_id = excluded.category_id,
				voted_at = excluded.voted_at
			WHERE proposal_votes.category_id <> excluded.category_id
		`, pattern, userID, categoryID, at)
		if err != nil {
			return fmt.Errorf("failed to record vote: %w", err)
		}
		changed, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		out.Changed = changed > 0

		dist, err := voteDistribution(ctx, tx, pattern)
		if err != nil {
			return err
		}

		next := *current
		next.VoteDistribution = dist
		next.UserCount = 0
		for _, n := range dist {
			next.UserCount += n
		}
		leader, share := next.Leader()
		next.ConfidenceScore = share
		// Admin approvals pin their category; votes keep counting around it.
		if next.ApprovedBy != model.ApprovedByAdmin {
			next.CategoryID = leader
		}

		update, err := tx.ExecContext(ctx, `
			UPDATE global_proposals SET
				category_id = ?, user_count = ?, confidence_score = ?,
				version = version + 1, updated_at = ?
			WHERE pattern = ? AND version = ?
		`, next.CategoryID, next.UserCount, next.ConfidenceScore, at, pattern, current.Version)
		if err != nil {
			return fmt.Errorf("failed to update proposal: %w", err)
		}
		if n, err := update.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("proposal %q: %w", pattern, common.ErrConcurrentUpdate)
		}

		next.Version = current.Version + 1
		out.Proposal = next
		return nil
	})
	return out, err
}

// PromoteProposal moves pattern from pending to approved by consensus. The
// status check, the minimum voter count and the vote share of categoryID
// are all evaluated against proposal_votes inside the UPDATE, so exactly
// one caller ever sees true and never on a distribution that changed after
// the caller read it.
func (s *SQLiteStorage) PromoteProposal(ctx context.Context, pattern, categoryID string, minUsers int, minShare float64, at time.Time) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return false, err
	}
	if err := validateString(categoryID, "categoryID"); err != nil {
		return false, err
	}
	if minUsers < 1 {
		minUsers = 1
	}
	at = at.UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE global_proposals SET
			status = 'approved', category_id = ?, approved_by = ?, approved_at = ?,
			version = version + 1, updated_at = ?
		WHERE pattern = ? AND status = 'pending'
			AND (SELECT COUNT(*) FROM proposal_votes v
				WHERE v.pattern = global_proposals.pattern) >= ?
			AND (SELECT COUNT(*) FROM proposal_votes v
				WHERE v.pattern = global_proposals.pattern AND v.category_id = ?) * 1.0
				/ MAX(1, (SELECT COUNT(*) FROM proposal_votes v
				WHERE v.pattern = global_proposals.pattern)) >= ?
	`, categoryID, model.ApprovedByConsensus, at, at, pattern, minUsers, categoryID, minShare)
	if err != nil {
		return false, fmt.Errorf("failed to promote proposal: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ApproveProposal pins pattern to categoryID on an administrator's word. It
// creates the proposal when nobody has voted yet, approves a pending one,
// re-pins an approved one and reverses a rejection. Votes already cast are
// kept.
func (s *SQLiteStorage) ApproveProposal(ctx context.Context, pattern, categoryID string, at time.Time) (service.Approval, error) {
	var out service.Approval
	if err := validateContext(ctx); err != nil {
		return out, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return out, err
	}
	if err := validateString(categoryID, "categoryID"); err != nil {
		return out, err
	}
	at = at.UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getProposal(ctx, tx, pattern)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO global_proposals (pattern, category_id, status, version, created_at, updated_at)
				VALUES (?, ?, 'pending', 0, ?, ?)
			`, pattern, categoryID, at, at); err != nil {
				return fmt.Errorf("failed to create proposal: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to read proposal: %w", err)
		default:
			out.PreviousStatus = current.Status
			out.PreviousCategory = current.CategoryID
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE global_proposals SET
				status = 'approved', category_id = ?, approved_by = ?, approved_at = ?,
				version = version + 1, updated_at = ?
			WHERE pattern = ?
		`, categoryID, model.ApprovedByAdmin, at, at, pattern); err != nil {
			return fmt.Errorf("failed to approve proposal: %w", err)
		}

		next, err := getProposal(ctx, tx, pattern)
		if err != nil {
			return fmt.Errorf("failed to read proposal: %w", err)
		}
		out.Proposal = *next
		return nil
	})
	return out, err
}

// RejectProposal moves a pending proposal to rejected.
func (s *SQLiteStorage) RejectProposal(ctx context.Context, pattern string, at time.Time) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE global_proposals SET status = 'rejected', version = version + 1, updated_at = ?
		WHERE pattern = ? AND status = 'pending'
	`, at.UTC(), pattern)
	if err != nil {
		return false, fmt.Errorf("failed to reject proposal: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ListProposals returns proposals in a status, most supported first.
func (s *SQLiteStorage) ListProposals(ctx context.Context, status model.ProposalStatus) ([]model.GlobalPatternProposal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateStatus(status); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+proposalColumns+`
		FROM global_proposals
		WHERE status = ?
		ORDER BY user_count DESC, pattern ASC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}

	var proposals []model.GlobalPatternProposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, *p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating proposals: %w", err)
	}
	_ = rows.Close()

	// The single connection is free again; load distributions.
	for i := range proposals {
		dist, err := voteDistribution(ctx, s.db, proposals[i].PatternText)
		if err != nil {
			return nil, err
		}
		proposals[i].VoteDistribution = dist
	}
	return proposals, nil
}
