package transfer

import "time"

// Status enumerates the transfer lifecycle.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusRejected  Status = "REJECTED"
)

// Transfer represents a single cross-branch stock movement. Completion posts
// exactly two ledger transactions, an issue at the source and a receipt at the
// destination, as one atomic unit.
type Transfer struct {
	ID           int64
	Reference    string
	ItemID       int64
	SourceBranch int64
	DestBranch   int64
	Quantity     int64
	Status       Status
	RequestedBy  int64
	RejectReason string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}
