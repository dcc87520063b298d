package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item represents a branch-scoped inventory item. QuantityOnHand is owned by
// the ledger and never written through this package.
type Item struct {
	ID              int64
	BranchID        int64
	Code            string
	Name            string
	Description     string
	CategoryID      int64
	Unit            string
	QuantityOnHand  int64
	ReorderLevel    int64
	ReorderQuantity int64
	UnitCost        decimal.Decimal
	SellingPrice    decimal.Decimal
	ExpiryDate      *time.Time
	Controlled      bool
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Category classifies items. No balance semantics.
type Category struct {
	ID         int64
	Code       string
	Name       string
	Controlled bool
	IsActive   bool
}

// ListFilters narrows item listings.
type ListFilters struct {
	BranchID        int64
	CategoryID      int64
	Search          string
	IncludeInactive bool
}
