package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType enumerates supported stock movements.
type TxType string

const (
	// TxReceipt credits stock, e.g. goods received from a vendor.
	TxReceipt TxType = "RECEIPT"
	// TxIssue debits stock, e.g. dispensing or a transfer leaving the branch.
	TxIssue TxType = "ISSUE"
	// TxAdjustment carries a caller-supplied signed delta.
	TxAdjustment TxType = "ADJUSTMENT"
	// TxTransfer carries a caller-supplied signed delta for transfer corrections.
	TxTransfer TxType = "TRANSFER"
	// TxReturn credits stock returned by a consumer.
	TxReturn TxType = "RETURN"
)

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	switch t {
	case TxReceipt, TxIssue, TxAdjustment, TxTransfer, TxReturn:
		return true
	}
	return false
}

// Signed reports whether the caller supplies the delta sign directly.
func (t TxType) Signed() bool {
	return t == TxAdjustment || t == TxTransfer
}

// Transaction is an immutable, append-only ledger record. The id doubles as
// the insertion sequence that breaks ties between equal transaction dates.
type Transaction struct {
	ID        int64
	BranchID  int64
	ItemID    int64
	Type      TxType
	Quantity  int64
	UnitCost  decimal.Decimal
	TxDate    time.Time
	Reference string
	Reason    string
	ActorID   int64
	WitnessID int64
	Balance   int64
	CreatedAt time.Time
}

// MovementInput describes one requested stock movement. Quantity is a positive
// magnitude for Receipt, Issue and Return; Adjustment and Transfer take a
// signed, non-zero value.
type MovementInput struct {
	BranchID  int64
	ItemID    int64
	Type      TxType
	Quantity  int64
	UnitCost  decimal.Decimal
	Reference string
	Reason    string
	ActorID   int64
	WitnessID int64
}

// AdjustMode selects how Adjust interprets its quantity.
type AdjustMode string

const (
	AdjustAdd    AdjustMode = "ADD"
	AdjustRemove AdjustMode = "REMOVE"
	AdjustSet    AdjustMode = "SET"
)

// AdjustInput describes a stock adjustment request.
type AdjustInput struct {
	BranchID  int64
	ItemID    int64
	Mode      AdjustMode
	Quantity  int64
	Reason    string
	ActorID   int64
	WitnessID int64
	Reference string
}

// ItemState is the ledger's view of an item row inside the critical section.
type ItemState struct {
	ID       int64
	BranchID int64
	Quantity int64
	Active   bool
}

// VerifyResult reports a replay of an item's transaction history against its
// stored quantity.
type VerifyResult struct {
	ItemID          int64
	Quantity        int64
	LedgerSum       int64
	Consistent      bool
	FirstMismatchID int64
}
