package stats

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository reads aggregation projections from PostgreSQL.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ItemFacts(ctx context.Context, branchID int64) ([]ItemFact, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.code, i.name, COALESCE(i.category_id, 0),
COALESCE(c.name, ''), i.quantity_on_hand, i.reorder_level, i.unit_cost, i.expiry_date
FROM inventory_items i
LEFT JOIN inventory_categories c ON c.id = i.category_id
WHERE i.branch_id=$1 AND i.is_active
ORDER BY i.code ASC`, branchID)
	if err != nil {
		return nil, fmt.Errorf("stats: query item facts: %w", err)
	}
	defer rows.Close()

	facts := []ItemFact{}
	for rows.Next() {
		var fact ItemFact
		if err := rows.Scan(&fact.ItemID, &fact.Code, &fact.Name, &fact.CategoryID, &fact.CategoryName,
			&fact.Quantity, &fact.ReorderLevel, &fact.UnitCost, &fact.ExpiryDate); err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}
	return facts, rows.Err()
}

func (r *repository) OpenDiscrepancyCount(ctx context.Context, branchID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_audit_lines l
JOIN stock_audits a ON a.id = l.audit_id
WHERE a.branch_id=$1 AND l.discrepancy AND NOT l.resolved`, branchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("stats: count discrepancies: %w", err)
	}
	return count, nil
}
