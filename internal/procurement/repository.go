package procurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger/medledger/internal/platform/db"
	"github.com/medledger/medledger/internal/shared"
)

// Repository persists purchase orders in PostgreSQL.
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

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("procurement repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const orderColumns = `id, number, branch_id, vendor, order_date, expected_date, status, total, created_by, created_at, updated_at`

// GetOrder loads an order header and its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, []OrderLine, error) {
	var order PurchaseOrder
	err := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id).
		Scan(&order.ID, &order.Number, &order.BranchID, &order.Vendor, &order.OrderDate,
			&order.ExpectedDate, &order.Status, &order.Total, &order.CreatedBy,
			&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, nil, shared.ErrOrderNotFound
		}
		return PurchaseOrder{}, nil, fmt.Errorf("procurement: get order: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, item_id, quantity, unit_cost
FROM purchase_order_lines WHERE order_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return PurchaseOrder{}, nil, fmt.Errorf("procurement: get lines: %w", err)
	}
	defer rows.Close()

	lines := []OrderLine{}
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ItemID, &line.Quantity, &line.UnitCost); err != nil {
			return PurchaseOrder{}, nil, err
		}
		lines = append(lines, line)
	}
	return order, lines, rows.Err()
}

// ListByBranch lists order headers of a branch, newest first.
func (r *Repository) ListByBranch(ctx context.Context, branchID int64) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM purchase_orders
WHERE branch_id=$1 ORDER BY order_date DESC, id DESC`, branchID)
	if err != nil {
		return nil, fmt.Errorf("procurement: list orders: %w", err)
	}
	defer rows.Close()

	orders := []PurchaseOrder{}
	for rows.Next() {
		var order PurchaseOrder
		if err := rows.Scan(&order.ID, &order.Number, &order.BranchID, &order.Vendor, &order.OrderDate,
			&order.ExpectedDate, &order.Status, &order.Total, &order.CreatedBy,
			&order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (r *txRepository) InsertOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders
(number, branch_id, vendor, order_date, expected_date, status, total, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		order.Number, order.BranchID, order.Vendor, order.OrderDate, order.ExpectedDate,
		string(order.Status), order.Total, nullInt(order.CreatedBy), order.CreatedAt, order.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("procurement: insert order: %w", err)
	}
	return id, nil
}

func (r *txRepository) InsertLine(ctx context.Context, line OrderLine) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO purchase_order_lines (order_id, item_id, quantity, unit_cost)
VALUES ($1,$2,$3,$4)`, line.OrderID, line.ItemID, line.Quantity, line.UnitCost)
	if err != nil {
		return fmt.Errorf("procurement: insert line: %w", err)
	}
	return nil
}

// UpdateStatus flips from -> to as a compare-and-set, so a concurrent writer
// that moved the order first makes this update a no-op instead of a blind
// overwrite.
func (r *txRepository) UpdateStatus(ctx context.Context, orderID int64, from, to Status) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`,
		orderID, string(from), string(to))
	if err != nil {
		return fmt.Errorf("procurement: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("procurement: order %d is no longer %s: %w", orderID, from, shared.ErrInvalidTransition)
	}
	return nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
