package stockaudit

import (
	"context"
	"fmt"
	"time"

	"github.com/medledger/medledger/internal/shared"
)

// RepositoryPort describes audit persistence used by Service.
type RepositoryPort interface {
	InsertAudit(ctx context.Context, audit Audit) (Audit, error)
	GetAudit(ctx context.Context, id int64) (Audit, error)
	UpdateAuditStatus(ctx context.Context, id int64, status Status, completedAt *time.Time) error
	UpsertLine(ctx context.Context, line CountLine) (CountLine, error)
	ListLines(ctx context.Context, auditID int64) ([]CountLine, error)
	MarkResolved(ctx context.Context, lineID int64) error
	OpenDiscrepancies(ctx context.Context, branchID int64) ([]CountLine, error)
}

// StockPort reads the ledger-owned balance of an item.
type StockPort interface {
	ItemQuantity(ctx context.Context, itemID int64) (int64, error)
}

// Service reconciles physical counts against the ledger. It detects and
// reports discrepancies; correcting the ledger is an explicit Adjustment the
// caller posts after investigation.
type Service struct {
	repo  RepositoryPort
	stock StockPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, stock StockPort) *Service {
	return &Service{repo: repo, stock: stock}
}

// Start opens a count session for a branch.
func (s *Service) Start(ctx context.Context, branchID, auditorID int64) (Audit, error) {
	if branchID == 0 {
		return Audit{}, fmt.Errorf("stockaudit: branch required")
	}
	now := time.Now().UTC()
	return s.repo.InsertAudit(ctx, Audit{
		BranchID:  branchID,
		Status:    StatusInProgress,
		AuditorID: auditorID,
		AuditDate: now,
		CreatedAt: now,
	})
}

// RecordCount stores the counted quantity and the ledger balance read at the
// same moment, flagging a discrepancy on mismatch.
func (s *Service) RecordCount(ctx context.Context, auditID, itemID, countedQty int64, witnessPresent bool) (CountLine, error) {
	if countedQty < 0 {
		return CountLine{}, fmt.Errorf("stockaudit: counted quantity: %w", shared.ErrInvalidQuantity)
	}
	audit, err := s.repo.GetAudit(ctx, auditID)
	if err != nil {
		return CountLine{}, err
	}
	if audit.Status == StatusCompleted {
		return CountLine{}, fmt.Errorf("stockaudit: audit %d completed: %w", auditID, shared.ErrInvalidTransition)
	}
	ledgerQty, err := s.stock.ItemQuantity(ctx, itemID)
	if err != nil {
		return CountLine{}, err
	}
	line := CountLine{
		AuditID:        auditID,
		ItemID:         itemID,
		CountedQty:     countedQty,
		LedgerQty:      ledgerQty,
		Discrepancy:    countedQty != ledgerQty,
		WitnessPresent: witnessPresent,
		CountedAt:      time.Now().UTC(),
	}
	return s.repo.UpsertLine(ctx, line)
}

// Complete closes the audit. Open discrepancies do not block completion; they
// stay visible until resolved.
func (s *Service) Complete(ctx context.Context, auditID int64) (Audit, error) {
	audit, err := s.repo.GetAudit(ctx, auditID)
	if err != nil {
		return Audit{}, err
	}
	if audit.Status == StatusCompleted {
		return Audit{}, fmt.Errorf("stockaudit: audit %d already completed: %w", auditID, shared.ErrInvalidTransition)
	}
	now := time.Now().UTC()
	if err := s.repo.UpdateAuditStatus(ctx, auditID, StatusCompleted, &now); err != nil {
		return Audit{}, err
	}
	audit.Status = StatusCompleted
	audit.CompletedAt = &now
	return audit, nil
}

// Lines lists the recorded counts of an audit.
func (s *Service) Lines(ctx context.Context, auditID int64) ([]CountLine, error) {
	if _, err := s.repo.GetAudit(ctx, auditID); err != nil {
		return nil, err
	}
	return s.repo.ListLines(ctx, auditID)
}

// MarkDiscrepancyResolved flips the resolved flag after the caller has posted
// its correcting adjustment through the ledger.
func (s *Service) MarkDiscrepancyResolved(ctx context.Context, lineID int64) error {
	return s.repo.MarkResolved(ctx, lineID)
}

// OpenDiscrepancies lists unresolved discrepancy lines of a branch.
func (s *Service) OpenDiscrepancies(ctx context.Context, branchID int64) ([]CountLine, error) {
	return s.repo.OpenDiscrepancies(ctx, branchID)
}
