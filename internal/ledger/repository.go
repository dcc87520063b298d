package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger/medledger/internal/platform/db"
	"github.com/medledger/medledger/internal/shared"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction. The item
// row lock taken by GetItemForUpdate serializes mutations per item.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetItem reads the current item state without locking.
func (r *Repository) GetItem(ctx context.Context, itemID int64) (ItemState, error) {
	var state ItemState
	err := r.pool.QueryRow(ctx, `SELECT id, branch_id, quantity_on_hand, is_active FROM inventory_items WHERE id=$1`, itemID).
		Scan(&state.ID, &state.BranchID, &state.Quantity, &state.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ItemState{}, shared.ErrItemNotFound
		}
		return ItemState{}, fmt.Errorf("ledger: get item: %w", err)
	}
	return state, nil
}

const txColumns = `id, branch_id, item_id, tx_type, quantity, unit_cost, tx_date, reference, reason, actor_id, witness_id, balance, created_at`

// ItemHistory lists an item's transactions ordered by date then insertion id.
func (r *Repository) ItemHistory(ctx context.Context, itemID int64) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+txColumns+` FROM stock_transactions
WHERE item_id=$1 ORDER BY tx_date ASC, id ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("ledger: item history: %w", err)
	}
	return collectTransactions(rows)
}

// BranchHistory lists a branch's transactions within the date range.
func (r *Repository) BranchHistory(ctx context.Context, branchID int64, from, to time.Time) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+txColumns+` FROM stock_transactions
WHERE branch_id=$1 AND tx_date BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
ORDER BY tx_date ASC, id ASC`, branchID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, fmt.Errorf("ledger: branch history: %w", err)
	}
	return collectTransactions(rows)
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, itemID int64) (ItemState, error) {
	var state ItemState
	err := r.tx.QueryRow(ctx, `SELECT id, branch_id, quantity_on_hand, is_active FROM inventory_items WHERE id=$1 FOR UPDATE`, itemID).
		Scan(&state.ID, &state.BranchID, &state.Quantity, &state.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ItemState{}, shared.ErrItemNotFound
		}
		return ItemState{}, fmt.Errorf("ledger: lock item: %w", err)
	}
	return state, nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, record Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_transactions
(branch_id, item_id, tx_type, quantity, unit_cost, tx_date, reference, reason, actor_id, witness_id, balance, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		record.BranchID, record.ItemID, string(record.Type), record.Quantity, record.UnitCost,
		record.TxDate, record.Reference, record.Reason, nullInt(record.ActorID), nullInt(record.WitnessID),
		record.Balance, record.CreatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("ledger: reference %q: %w", record.Reference, shared.ErrDuplicateReference)
		}
		return 0, fmt.Errorf("ledger: insert transaction: %w", err)
	}
	return id, nil
}

func (r *txRepository) UpdateItemQuantity(ctx context.Context, itemID, quantity int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_items SET quantity_on_hand=$2, updated_at=NOW() WHERE id=$1`,
		itemID, quantity)
	if err != nil {
		return fmt.Errorf("ledger: update quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrItemNotFound
	}
	return nil
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	defer rows.Close()
	records := []Transaction{}
	for rows.Next() {
		var record Transaction
		var actorID, witnessID *int64
		if err := rows.Scan(&record.ID, &record.BranchID, &record.ItemID, &record.Type, &record.Quantity,
			&record.UnitCost, &record.TxDate, &record.Reference, &record.Reason, &actorID, &witnessID,
			&record.Balance, &record.CreatedAt); err != nil {
			return nil, err
		}
		if actorID != nil {
			record.ActorID = *actorID
		}
		if witnessID != nil {
			record.WitnessID = *witnessID
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
