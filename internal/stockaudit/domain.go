package stockaudit

import "time"

// Status enumerates the audit lifecycle.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Audit represents one physical stock count session for a branch.
type Audit struct {
	ID          int64
	BranchID    int64
	Status      Status
	AuditorID   int64
	AuditDate   time.Time
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// CountLine stores one counted item together with the ledger balance read at
// the same moment. A mismatch flags a discrepancy; the ledger is never
// corrected from here.
type CountLine struct {
	ID             int64
	AuditID        int64
	ItemID         int64
	CountedQty     int64
	LedgerQty      int64
	Discrepancy    bool
	WitnessPresent bool
	Resolved       bool
	CountedAt      time.Time
}
