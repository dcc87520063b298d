package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/shared"
)

// LedgerPort posts the opening movement for items created with stock on hand.
type LedgerPort interface {
	Record(ctx context.Context, input ledger.MovementInput) (ledger.Transaction, error)
}

// Service owns item and category identity. Quantities are read-only here; the
// ledger is the sole writer of QuantityOnHand.
type Service struct {
	repo     Repository
	ledger   LedgerPort
	validate *validator.Validate
}

// NewService builds Service.
func NewService(repo Repository, ledgerPort LedgerPort) *Service {
	return &Service{repo: repo, ledger: ledgerPort, validate: validator.New()}
}

// CreateItemInput describes a new item.
type CreateItemInput struct {
	BranchID        int64  `validate:"required"`
	Code            string `validate:"required"`
	Name            string `validate:"required"`
	Description     string
	CategoryID      int64
	Unit            string `validate:"required"`
	InitialQuantity int64
	ReorderLevel    int64 `validate:"gte=0"`
	ReorderQuantity int64 `validate:"gte=0"`
	UnitCost        decimal.Decimal
	SellingPrice    decimal.Decimal
	ExpiryDate      *time.Time
	Controlled      bool
}

// UpdateItemInput describes attribute updates. Quantity is deliberately absent.
type UpdateItemInput struct {
	Name            string `validate:"required"`
	Description     string
	CategoryID      int64
	Unit            string `validate:"required"`
	ReorderLevel    int64 `validate:"gte=0"`
	ReorderQuantity int64 `validate:"gte=0"`
	UnitCost        decimal.Decimal
	SellingPrice    decimal.Decimal
	ExpiryDate      *time.Time
	Controlled      bool
}

// CreateItem registers an item. The code must be unique within the branch and
// the opening quantity must not be negative. The item is inserted empty and a
// nonzero opening quantity is posted as a ledger adjustment, so the stored
// quantity always equals the sum of the item's transaction deltas.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	if err := s.validate.Struct(input); err != nil {
		return Item{}, fmt.Errorf("catalog: %w", err)
	}
	if input.InitialQuantity < 0 {
		return Item{}, fmt.Errorf("catalog: initial quantity: %w", shared.ErrInvalidQuantity)
	}
	if input.UnitCost.IsNegative() || input.SellingPrice.IsNegative() {
		return Item{}, fmt.Errorf("catalog: %w", shared.ErrInvalidUnitCost)
	}
	code := strings.TrimSpace(input.Code)
	if _, err := s.repo.GetByCode(ctx, input.BranchID, code); err == nil {
		return Item{}, shared.ErrDuplicateCode
	}
	now := time.Now().UTC()
	item := Item{
		BranchID:        input.BranchID,
		Code:            code,
		Name:            input.Name,
		Description:     input.Description,
		CategoryID:      input.CategoryID,
		Unit:            input.Unit,
		ReorderLevel:    input.ReorderLevel,
		ReorderQuantity: input.ReorderQuantity,
		UnitCost:        input.UnitCost,
		SellingPrice:    input.SellingPrice,
		ExpiryDate:      input.ExpiryDate,
		Controlled:      input.Controlled,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	item, err := s.repo.Insert(ctx, item)
	if err != nil {
		return Item{}, err
	}
	if input.InitialQuantity > 0 {
		record, err := s.ledger.Record(ctx, ledger.MovementInput{
			BranchID:  item.BranchID,
			ItemID:    item.ID,
			Type:      ledger.TxAdjustment,
			Quantity:  input.InitialQuantity,
			UnitCost:  input.UnitCost,
			Reference: fmt.Sprintf("OPEN-%s", code),
			Reason:    "opening balance",
		})
		if err != nil {
			// The item stays at zero with no ledger rows, so the balance
			// invariant holds and stock can be posted separately.
			return Item{}, fmt.Errorf("catalog: opening balance for %s: %w", code, err)
		}
		item.QuantityOnHand = record.Balance
	}
	return item, nil
}

// UpdateItem applies attribute edits to an existing item.
func (s *Service) UpdateItem(ctx context.Context, id int64, input UpdateItemInput) (Item, error) {
	if err := s.validate.Struct(input); err != nil {
		return Item{}, fmt.Errorf("catalog: %w", err)
	}
	if input.UnitCost.IsNegative() || input.SellingPrice.IsNegative() {
		return Item{}, fmt.Errorf("catalog: %w", shared.ErrInvalidUnitCost)
	}
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	item.Name = input.Name
	item.Description = input.Description
	item.CategoryID = input.CategoryID
	item.Unit = input.Unit
	item.ReorderLevel = input.ReorderLevel
	item.ReorderQuantity = input.ReorderQuantity
	item.UnitCost = input.UnitCost
	item.SellingPrice = input.SellingPrice
	item.ExpiryDate = input.ExpiryDate
	item.Controlled = input.Controlled
	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// DeactivateItem soft-deletes an item. Transaction history stays intact.
func (s *Service) DeactivateItem(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, false)
}

// Get returns an item by id.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, shared.ErrItemNotFound
	}
	return s.repo.Get(ctx, id)
}

// GetByCode returns an item by branch-scoped code.
func (s *Service) GetByCode(ctx context.Context, branchID int64, code string) (Item, error) {
	return s.repo.GetByCode(ctx, branchID, strings.TrimSpace(code))
}

// ListByBranch lists active items of a branch.
func (s *Service) ListByBranch(ctx context.Context, branchID int64, includeInactive bool) ([]Item, error) {
	return s.repo.List(ctx, ListFilters{BranchID: branchID, IncludeInactive: includeInactive})
}

// ListByCategory lists active items of a branch filtered by category.
func (s *Service) ListByCategory(ctx context.Context, branchID, categoryID int64) ([]Item, error) {
	return s.repo.List(ctx, ListFilters{BranchID: branchID, CategoryID: categoryID})
}

// Search matches active items by name or code fragment.
func (s *Service) Search(ctx context.Context, branchID int64, text string) ([]Item, error) {
	return s.repo.List(ctx, ListFilters{BranchID: branchID, Search: strings.TrimSpace(text)})
}

// CreateCategory registers a classification entry.
func (s *Service) CreateCategory(ctx context.Context, code, name string, controlled bool) (Category, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(name) == "" {
		return Category{}, fmt.Errorf("catalog: category code and name required")
	}
	return s.repo.InsertCategory(ctx, Category{Code: code, Name: name, Controlled: controlled, IsActive: true})
}

// ListCategories lists all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}
