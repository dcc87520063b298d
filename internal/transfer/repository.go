package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger/medledger/internal/shared"
)

// Repository persists transfers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const transferColumns = `id, reference, item_id, source_branch, dest_branch, quantity, status, requested_by, reject_reason, created_at, completed_at`

func (r *Repository) Insert(ctx context.Context, transfer Transfer) (Transfer, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO stock_transfers
(reference, item_id, source_branch, dest_branch, quantity, status, requested_by, reject_reason, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		transfer.Reference, transfer.ItemID, transfer.SourceBranch, transfer.DestBranch,
		transfer.Quantity, string(transfer.Status), transfer.RequestedBy, transfer.RejectReason,
		transfer.CreatedAt).Scan(&transfer.ID)
	if err != nil {
		return Transfer{}, fmt.Errorf("transfer: insert: %w", err)
	}
	return transfer, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Transfer, error) {
	var transfer Transfer
	err := r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM stock_transfers WHERE id=$1`, id).
		Scan(&transfer.ID, &transfer.Reference, &transfer.ItemID, &transfer.SourceBranch,
			&transfer.DestBranch, &transfer.Quantity, &transfer.Status, &transfer.RequestedBy,
			&transfer.RejectReason, &transfer.CreatedAt, &transfer.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, shared.ErrNotFound
		}
		return Transfer{}, fmt.Errorf("transfer: get: %w", err)
	}
	return transfer, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status, reason string, completedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stock_transfers SET status=$2, reject_reason=$3, completed_at=$4 WHERE id=$1`,
		id, string(status), reason, completedAt)
	if err != nil {
		return fmt.Errorf("transfer: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) ListPending(ctx context.Context, branchID int64) ([]Transfer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transferColumns+` FROM stock_transfers
WHERE status=$1 AND (source_branch=$2 OR dest_branch=$2) ORDER BY created_at ASC`,
		string(StatusPending), branchID)
	if err != nil {
		return nil, fmt.Errorf("transfer: list pending: %w", err)
	}
	defer rows.Close()

	transfers := []Transfer{}
	for rows.Next() {
		var transfer Transfer
		if err := rows.Scan(&transfer.ID, &transfer.Reference, &transfer.ItemID, &transfer.SourceBranch,
			&transfer.DestBranch, &transfer.Quantity, &transfer.Status, &transfer.RequestedBy,
			&transfer.RejectReason, &transfer.CreatedAt, &transfer.CompletedAt); err != nil {
			return nil, err
		}
		transfers = append(transfers, transfer)
	}
	return transfers, rows.Err()
}
