package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger/medledger/internal/shared"
)

// Repository describes catalog persistence used by Service.
type Repository interface {
	Insert(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, item Item) error
	SetActive(ctx context.Context, id int64, active bool) error
	Get(ctx context.Context, id int64) (Item, error)
	GetByCode(ctx context.Context, branchID int64, code string) (Item, error)
	List(ctx context.Context, filters ListFilters) ([]Item, error)
	InsertCategory(ctx context.Context, category Category) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository persists catalog data in PostgreSQL.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const itemColumns = `id, branch_id, code, name, description, category_id, unit, quantity_on_hand,
reorder_level, reorder_qty, unit_cost, selling_price, expiry_date, controlled, is_active, created_at, updated_at`

func (r *repository) Insert(ctx context.Context, item Item) (Item, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO inventory_items
(branch_id, code, name, description, category_id, unit, quantity_on_hand, reorder_level, reorder_qty,
 unit_cost, selling_price, expiry_date, controlled, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15) RETURNING id`,
		item.BranchID, item.Code, item.Name, item.Description, nullInt(item.CategoryID), item.Unit,
		item.QuantityOnHand, item.ReorderLevel, item.ReorderQuantity, item.UnitCost, item.SellingPrice,
		item.ExpiryDate, item.Controlled, item.IsActive, item.CreatedAt).Scan(&item.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Item{}, shared.ErrDuplicateCode
		}
		return Item{}, fmt.Errorf("catalog: insert item: %w", err)
	}
	return item, nil
}

func (r *repository) Update(ctx context.Context, item Item) error {
	tag, err := r.pool.Exec(ctx, `UPDATE inventory_items SET
name=$2, description=$3, category_id=$4, unit=$5, reorder_level=$6, reorder_qty=$7,
unit_cost=$8, selling_price=$9, expiry_date=$10, controlled=$11, updated_at=$12
WHERE id=$1`,
		item.ID, item.Name, item.Description, nullInt(item.CategoryID), item.Unit,
		item.ReorderLevel, item.ReorderQuantity, item.UnitCost, item.SellingPrice,
		item.ExpiryDate, item.Controlled, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrItemNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE inventory_items SET is_active=$2, updated_at=$3 WHERE id=$1`,
		id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("catalog: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrItemNotFound
	}
	return nil
}

func (r *repository) Get(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=$1`, id)
	return scanItem(row)
}

func (r *repository) GetByCode(ctx context.Context, branchID int64, code string) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE branch_id=$1 AND code=$2`,
		branchID, code)
	return scanItem(row)
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE branch_id=$1`
	args := []any{filters.BranchID}
	if filters.CategoryID != 0 {
		args = append(args, filters.CategoryID)
		query += fmt.Sprintf(" AND category_id=$%d", len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		query += fmt.Sprintf(" AND (name ILIKE $%d OR code ILIKE $%d)", len(args), len(args))
	}
	if !filters.IncludeInactive {
		query += " AND is_active"
	}
	query += " ORDER BY code ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) InsertCategory(ctx context.Context, category Category) (Category, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO inventory_categories (code, name, controlled, is_active)
VALUES ($1,$2,$3,$4) RETURNING id`,
		category.Code, category.Name, category.Controlled, category.IsActive).Scan(&category.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Category{}, shared.ErrDuplicateCode
		}
		return Category{}, fmt.Errorf("catalog: insert category: %w", err)
	}
	return category, nil
}

func (r *repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, controlled, is_active FROM inventory_categories ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list categories: %w", err)
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Controlled, &c.IsActive); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	var categoryID *int64
	err := row.Scan(&item.ID, &item.BranchID, &item.Code, &item.Name, &item.Description, &categoryID,
		&item.Unit, &item.QuantityOnHand, &item.ReorderLevel, &item.ReorderQuantity, &item.UnitCost,
		&item.SellingPrice, &item.ExpiryDate, &item.Controlled, &item.IsActive, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrItemNotFound
		}
		return Item{}, fmt.Errorf("catalog: scan item: %w", err)
	}
	if categoryID != nil {
		item.CategoryID = *categoryID
	}
	return item, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
