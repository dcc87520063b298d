package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the purchase order lifecycle.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusReceived  Status = "RECEIVED"
	StatusCancelled Status = "CANCELLED"
)

// transitions is the single place legal status changes are defined.
// Received and Cancelled are terminal.
var transitions = map[Status][]Status{
	StatusDraft:    {StatusPending, StatusCancelled},
	StatusPending:  {StatusApproved, StatusCancelled},
	StatusApproved: {StatusReceived, StatusCancelled},
}

// CanTransition reports whether from→to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusReceived, StatusCancelled:
		return true
	}
	return false
}

// PurchaseOrder models an order header.
type PurchaseOrder struct {
	ID           int64
	Number       string
	BranchID     int64
	Vendor       string
	OrderDate    time.Time
	ExpectedDate time.Time
	Status       Status
	Total        decimal.Decimal
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderLine models one ordered item.
type OrderLine struct {
	ID       int64
	OrderID  int64
	ItemID   int64
	Quantity int64
	UnitCost decimal.Decimal
}
