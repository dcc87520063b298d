package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medledger/medledger/internal/catalog"
	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/shared"
)

// RepositoryPort describes transfer persistence used by Service.
type RepositoryPort interface {
	Insert(ctx context.Context, transfer Transfer) (Transfer, error)
	Get(ctx context.Context, id int64) (Transfer, error)
	UpdateStatus(ctx context.Context, id int64, status Status, reason string, completedAt *time.Time) error
	ListPending(ctx context.Context, branchID int64) ([]Transfer, error)
}

// LedgerPort posts movement batches atomically.
type LedgerPort interface {
	RecordBatch(ctx context.Context, inputs []ledger.MovementInput) ([]ledger.Transaction, error)
}

// CatalogPort resolves items across branches.
type CatalogPort interface {
	Get(ctx context.Context, id int64) (catalog.Item, error)
	GetByCode(ctx context.Context, branchID int64, code string) (catalog.Item, error)
}

// AuditPort abstracts activity logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts completed transfers.
type MetricsPort interface {
	TransferCompleted()
}

// Service coordinates two-sided stock movements between branches.
type Service struct {
	repo    RepositoryPort
	ledger  LedgerPort
	catalog CatalogPort
	audit   AuditPort
	metrics MetricsPort
}

// NewService builds Service. The audit and metrics ports may be nil.
func NewService(repo RepositoryPort, ledgerPort LedgerPort, catalogPort CatalogPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, ledger: ledgerPort, catalog: catalogPort, audit: audit, metrics: metrics}
}

// Initiate registers a pending transfer. Stock is untouched until Complete.
func (s *Service) Initiate(ctx context.Context, itemID, sourceBranch, destBranch, quantity, requestedBy int64) (Transfer, error) {
	if quantity <= 0 {
		return Transfer{}, fmt.Errorf("transfer: %w", shared.ErrInvalidQuantity)
	}
	if sourceBranch == destBranch {
		return Transfer{}, fmt.Errorf("transfer: source and destination branch must differ")
	}
	item, err := s.catalog.Get(ctx, itemID)
	if err != nil {
		return Transfer{}, err
	}
	if item.BranchID != sourceBranch {
		return Transfer{}, fmt.Errorf("transfer: item %d not in branch %d: %w", itemID, sourceBranch, shared.ErrItemNotFound)
	}
	transfer := Transfer{
		Reference:    fmt.Sprintf("TRF-%s", uuid.NewString()),
		ItemID:       itemID,
		SourceBranch: sourceBranch,
		DestBranch:   destBranch,
		Quantity:     quantity,
		Status:       StatusPending,
		RequestedBy:  requestedBy,
		CreatedAt:    time.Now().UTC(),
	}
	created, err := s.repo.Insert(ctx, transfer)
	if err != nil {
		return Transfer{}, err
	}
	s.recordAudit(ctx, created, "TRANSFER_INITIATE", nil)
	return created, nil
}

// Complete posts both legs through one atomic ledger batch and marks the
// transfer completed. An insufficient source balance leaves the transfer
// pending and the ledger untouched; Reject is the explicit terminal path.
// The leg references are derived from the transfer reference, so a retry
// after a failed status flip finds them already in the ledger and only the
// flip is repeated, never the stock movement.
func (s *Service) Complete(ctx context.Context, transferID, actorID int64) (Transfer, error) {
	transfer, err := s.repo.Get(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}
	if transfer.Status != StatusPending {
		return Transfer{}, fmt.Errorf("transfer %d is %s: %w", transferID, transfer.Status, shared.ErrTransferNotPending)
	}
	source, err := s.catalog.Get(ctx, transfer.ItemID)
	if err != nil {
		return Transfer{}, err
	}
	dest, err := s.catalog.GetByCode(ctx, transfer.DestBranch, source.Code)
	if err != nil {
		return Transfer{}, fmt.Errorf("transfer: destination item %q in branch %d: %w", source.Code, transfer.DestBranch, err)
	}

	_, err = s.ledger.RecordBatch(ctx, []ledger.MovementInput{
		{
			BranchID:  transfer.SourceBranch,
			ItemID:    source.ID,
			Type:      ledger.TxIssue,
			Quantity:  transfer.Quantity,
			UnitCost:  source.UnitCost,
			Reference: fmt.Sprintf("%s-OUT", transfer.Reference),
			Reason:    fmt.Sprintf("transfer to branch %d", transfer.DestBranch),
			ActorID:   actorID,
		},
		{
			BranchID:  transfer.DestBranch,
			ItemID:    dest.ID,
			Type:      ledger.TxReceipt,
			Quantity:  transfer.Quantity,
			UnitCost:  source.UnitCost,
			Reference: fmt.Sprintf("%s-IN", transfer.Reference),
			Reason:    fmt.Sprintf("transfer from branch %d", transfer.SourceBranch),
			ActorID:   actorID,
		},
	})
	if err != nil && !errors.Is(err, shared.ErrDuplicateReference) {
		return Transfer{}, err
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, transferID, StatusCompleted, "", &now); err != nil {
		return Transfer{}, err
	}
	transfer.Status = StatusCompleted
	transfer.CompletedAt = &now
	if s.metrics != nil {
		s.metrics.TransferCompleted()
	}
	s.recordAudit(ctx, transfer, "TRANSFER_COMPLETE", map[string]any{"qty": transfer.Quantity})
	return transfer, nil
}

// Reject terminates a pending transfer with no stock effect.
func (s *Service) Reject(ctx context.Context, transferID int64, reason string) (Transfer, error) {
	transfer, err := s.repo.Get(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}
	if transfer.Status != StatusPending {
		return Transfer{}, fmt.Errorf("transfer %d is %s: %w", transferID, transfer.Status, shared.ErrTransferNotPending)
	}
	if err := s.repo.UpdateStatus(ctx, transferID, StatusRejected, reason, nil); err != nil {
		return Transfer{}, err
	}
	transfer.Status = StatusRejected
	transfer.RejectReason = reason
	s.recordAudit(ctx, transfer, "TRANSFER_REJECT", map[string]any{"reason": reason})
	return transfer, nil
}

// ListPending lists pending transfers where the branch is source or destination.
func (s *Service) ListPending(ctx context.Context, branchID int64) ([]Transfer, error) {
	return s.repo.ListPending(ctx, branchID)
}

func (s *Service) recordAudit(ctx context.Context, transfer Transfer, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  transfer.RequestedBy,
		BranchID: transfer.SourceBranch,
		Action:   action,
		Entity:   "stock_transfer",
		EntityID: transfer.Reference,
		Meta:     meta,
	})
}
