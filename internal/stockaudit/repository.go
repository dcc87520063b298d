package stockaudit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger/medledger/internal/shared"
)

// Repository persists stock audits in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) InsertAudit(ctx context.Context, audit Audit) (Audit, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO stock_audits (branch_id, status, auditor_id, audit_date, created_at)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		audit.BranchID, string(audit.Status), audit.AuditorID, audit.AuditDate, audit.CreatedAt).Scan(&audit.ID)
	if err != nil {
		return Audit{}, fmt.Errorf("stockaudit: insert audit: %w", err)
	}
	return audit, nil
}

func (r *Repository) GetAudit(ctx context.Context, id int64) (Audit, error) {
	var audit Audit
	err := r.pool.QueryRow(ctx, `SELECT id, branch_id, status, auditor_id, audit_date, created_at, completed_at
FROM stock_audits WHERE id=$1`, id).
		Scan(&audit.ID, &audit.BranchID, &audit.Status, &audit.AuditorID, &audit.AuditDate,
			&audit.CreatedAt, &audit.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Audit{}, shared.ErrAuditNotFound
		}
		return Audit{}, fmt.Errorf("stockaudit: get audit: %w", err)
	}
	return audit, nil
}

func (r *Repository) UpdateAuditStatus(ctx context.Context, id int64, status Status, completedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stock_audits SET status=$2, completed_at=$3 WHERE id=$1`,
		id, string(status), completedAt)
	if err != nil {
		return fmt.Errorf("stockaudit: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAuditNotFound
	}
	return nil
}

// UpsertLine stores a count; recounting an item within the same audit replaces
// the earlier line.
func (r *Repository) UpsertLine(ctx context.Context, line CountLine) (CountLine, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO stock_audit_lines
(audit_id, item_id, counted_qty, ledger_qty, discrepancy, witness_present, resolved, counted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (audit_id, item_id) DO UPDATE SET
counted_qty=EXCLUDED.counted_qty, ledger_qty=EXCLUDED.ledger_qty, discrepancy=EXCLUDED.discrepancy,
witness_present=EXCLUDED.witness_present, resolved=false, counted_at=EXCLUDED.counted_at
RETURNING id`,
		line.AuditID, line.ItemID, line.CountedQty, line.LedgerQty, line.Discrepancy,
		line.WitnessPresent, line.Resolved, line.CountedAt).Scan(&line.ID)
	if err != nil {
		return CountLine{}, fmt.Errorf("stockaudit: upsert line: %w", err)
	}
	return line, nil
}

func (r *Repository) ListLines(ctx context.Context, auditID int64) ([]CountLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, audit_id, item_id, counted_qty, ledger_qty, discrepancy, witness_present, resolved, counted_at
FROM stock_audit_lines WHERE audit_id=$1 ORDER BY id ASC`, auditID)
	if err != nil {
		return nil, fmt.Errorf("stockaudit: list lines: %w", err)
	}
	return collectLines(rows)
}

func (r *Repository) MarkResolved(ctx context.Context, lineID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stock_audit_lines SET resolved=true WHERE id=$1`, lineID)
	if err != nil {
		return fmt.Errorf("stockaudit: mark resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) OpenDiscrepancies(ctx context.Context, branchID int64) ([]CountLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.audit_id, l.item_id, l.counted_qty, l.ledger_qty, l.discrepancy, l.witness_present, l.resolved, l.counted_at
FROM stock_audit_lines l
JOIN stock_audits a ON a.id = l.audit_id
WHERE a.branch_id=$1 AND l.discrepancy AND NOT l.resolved
ORDER BY l.counted_at ASC`, branchID)
	if err != nil {
		return nil, fmt.Errorf("stockaudit: open discrepancies: %w", err)
	}
	return collectLines(rows)
}

func collectLines(rows pgx.Rows) ([]CountLine, error) {
	defer rows.Close()
	lines := []CountLine{}
	for rows.Next() {
		var line CountLine
		if err := rows.Scan(&line.ID, &line.AuditID, &line.ItemID, &line.CountedQty, &line.LedgerQty,
			&line.Discrepancy, &line.WitnessPresent, &line.Resolved, &line.CountedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
