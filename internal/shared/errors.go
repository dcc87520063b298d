package shared

import "errors"

// Sentinel errors shared by the ledger core. Services wrap these with %w so
// callers can classify a failure with errors.Is or KindOf.
var (
	// ErrInvalidQuantity indicates a zero, negative or otherwise unusable quantity.
	ErrInvalidQuantity = errors.New("quantity is invalid")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("unit cost must be >= 0")
	// ErrDuplicateCode indicates an item code already used within the branch.
	ErrDuplicateCode = errors.New("item code already exists in branch")
	// ErrDuplicateReference indicates a transaction reference already used within the branch.
	ErrDuplicateReference = errors.New("transaction reference already exists in branch")
	// ErrInvalidTransition indicates a status change outside the transition table.
	ErrInvalidTransition = errors.New("status transition not allowed")

	// ErrInsufficientStock indicates a debit larger than the current balance.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrTransferNotPending indicates a completed or rejected transfer was acted on.
	ErrTransferNotPending = errors.New("transfer is not pending")

	// ErrItemNotFound indicates the item does not exist or is outside the branch scope.
	ErrItemNotFound = errors.New("item not found")
	// ErrOrderNotFound indicates the purchase order does not exist.
	ErrOrderNotFound = errors.New("purchase order not found")
	// ErrAuditNotFound indicates the stock audit does not exist.
	ErrAuditNotFound = errors.New("stock audit not found")
	// ErrNotFound indicates any other missing resource.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict signals a contended per-item critical section.
	ErrVersionConflict = errors.New("concurrent modification detected")
)

// Kind groups errors for the transport layer sitting above the core.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindConcurrency
)

// KindOf classifies err into the error taxonomy. Unrecognised errors map to
// KindUnknown and should be treated as internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidUnitCost),
		errors.Is(err, ErrDuplicateCode),
		errors.Is(err, ErrDuplicateReference),
		errors.Is(err, ErrInvalidTransition):
		return KindValidation
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrTransferNotPending):
		return KindConflict
	case errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrAuditNotFound),
		errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrVersionConflict):
		return KindConcurrency
	default:
		return KindUnknown
	}
}
