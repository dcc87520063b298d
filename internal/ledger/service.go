package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/medledger/medledger/internal/shared"
)

// RepositoryPort abstracts ledger persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, itemID int64) (ItemState, error)
	ItemHistory(ctx context.Context, itemID int64) ([]Transaction, error)
	BranchHistory(ctx context.Context, branchID int64, from, to time.Time) ([]Transaction, error)
}

// TxRepository exposes the operations available inside the critical section.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, itemID int64) (ItemState, error)
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
	UpdateItemQuantity(ctx context.Context, itemID, quantity int64) error
}

// AuditPort abstracts activity logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort abstracts movement counters.
type MetricsPort interface {
	MovementPosted(txType string)
	MovementRejected(reason string)
}

// Service is the single writer of every item's QuantityOnHand. All quantity
// mutation flows through a locked read-modify-write on the item row.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
}

// NewService builds Service. The audit and metrics ports may be nil.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics}
}

// Record posts one stock movement. The transaction insert and the quantity
// update commit as one unit; on any failure nothing is persisted.
func (s *Service) Record(ctx context.Context, input MovementInput) (Transaction, error) {
	recorded, err := s.RecordBatch(ctx, []MovementInput{input})
	if err != nil {
		return Transaction{}, err
	}
	return recorded[0], nil
}

// RecordBatch posts several movements as one atomic unit. Item rows are locked
// in ascending item-id order so that concurrent opposite-direction batches
// cannot deadlock.
func (s *Service) RecordBatch(ctx context.Context, inputs []MovementInput) ([]Transaction, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("ledger: no movements supplied")
	}
	for i := range inputs {
		if err := validateMovement(inputs[i]); err != nil {
			s.rejected("validation")
			return nil, err
		}
		if inputs[i].Reference == "" {
			inputs[i].Reference = fmt.Sprintf("TXN-%s", uuid.NewString())
		}
	}

	now := time.Now().UTC()
	recorded := make([]Transaction, len(inputs))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		states, err := lockItems(ctx, tx, inputs)
		if err != nil {
			return err
		}
		for i, input := range inputs {
			state := states[input.ItemID]
			if input.BranchID != state.BranchID {
				return fmt.Errorf("ledger: item %d not in branch %d: %w", input.ItemID, input.BranchID, shared.ErrItemNotFound)
			}
			delta := deltaFor(input.Type, input.Quantity)
			newQty := state.Quantity + delta
			if newQty < 0 {
				return fmt.Errorf("ledger: item %d balance %d, requested %d: %w",
					input.ItemID, state.Quantity, -delta, shared.ErrInsufficientStock)
			}
			record := Transaction{
				BranchID:  input.BranchID,
				ItemID:    input.ItemID,
				Type:      input.Type,
				Quantity:  delta,
				UnitCost:  input.UnitCost,
				TxDate:    now,
				Reference: input.Reference,
				Reason:    input.Reason,
				ActorID:   input.ActorID,
				WitnessID: input.WitnessID,
				Balance:   newQty,
				CreatedAt: now,
			}
			id, err := tx.InsertTransaction(ctx, record)
			if err != nil {
				return err
			}
			record.ID = id
			if err := tx.UpdateItemQuantity(ctx, input.ItemID, newQty); err != nil {
				return err
			}
			state.Quantity = newQty
			states[input.ItemID] = state
			recorded[i] = record
		}
		return nil
	})
	if err != nil {
		s.rejected(rejectionReason(err))
		return nil, err
	}
	for _, record := range recorded {
		if s.metrics != nil {
			s.metrics.MovementPosted(string(record.Type))
		}
		if s.audit != nil {
			_ = s.audit.Record(ctx, shared.AuditLog{
				ActorID:  record.ActorID,
				BranchID: record.BranchID,
				Action:   fmt.Sprintf("ledger:%s", record.Type),
				Entity:   "stock_transaction",
				EntityID: record.Reference,
				Meta: map[string]any{
					"item_id": record.ItemID,
					"qty":     record.Quantity,
					"balance": record.Balance,
				},
			})
		}
	}
	return recorded, nil
}

// Adjust is a convenience over signed Adjustment movements. Set computes the
// delta against the current balance inside the same critical section.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Transaction, error) {
	switch input.Mode {
	case AdjustAdd, AdjustRemove:
		if input.Quantity <= 0 {
			return Transaction{}, fmt.Errorf("ledger: adjust %s: %w", input.Mode, shared.ErrInvalidQuantity)
		}
		qty := input.Quantity
		if input.Mode == AdjustRemove {
			qty = -qty
		}
		return s.Record(ctx, MovementInput{
			BranchID:  input.BranchID,
			ItemID:    input.ItemID,
			Type:      TxAdjustment,
			Quantity:  qty,
			Reference: input.Reference,
			Reason:    input.Reason,
			ActorID:   input.ActorID,
			WitnessID: input.WitnessID,
		})
	case AdjustSet:
		return s.adjustSet(ctx, input)
	default:
		return Transaction{}, fmt.Errorf("ledger: unknown adjust mode %q", input.Mode)
	}
}

func (s *Service) adjustSet(ctx context.Context, input AdjustInput) (Transaction, error) {
	if input.Quantity < 0 {
		return Transaction{}, fmt.Errorf("ledger: adjust set target: %w", shared.ErrInvalidQuantity)
	}
	reference := input.Reference
	if reference == "" {
		reference = fmt.Sprintf("ADJ-%s", uuid.NewString())
	}
	now := time.Now().UTC()
	var record Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		state, err := tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		if input.BranchID != 0 && input.BranchID != state.BranchID {
			return fmt.Errorf("ledger: item %d not in branch %d: %w", input.ItemID, input.BranchID, shared.ErrItemNotFound)
		}
		delta := input.Quantity - state.Quantity
		if delta == 0 {
			return fmt.Errorf("ledger: set to current balance: %w", shared.ErrInvalidQuantity)
		}
		record = Transaction{
			BranchID:  state.BranchID,
			ItemID:    input.ItemID,
			Type:      TxAdjustment,
			Quantity:  delta,
			TxDate:    now,
			Reference: reference,
			Reason:    input.Reason,
			ActorID:   input.ActorID,
			WitnessID: input.WitnessID,
			Balance:   input.Quantity,
			CreatedAt: now,
		}
		id, err := tx.InsertTransaction(ctx, record)
		if err != nil {
			return err
		}
		record.ID = id
		return tx.UpdateItemQuantity(ctx, input.ItemID, input.Quantity)
	})
	if err != nil {
		s.rejected(rejectionReason(err))
		return Transaction{}, err
	}
	if s.metrics != nil {
		s.metrics.MovementPosted(string(TxAdjustment))
	}
	return record, nil
}

// ItemHistory returns an item's transactions ordered by date then insertion.
func (s *Service) ItemHistory(ctx context.Context, itemID int64) ([]Transaction, error) {
	return s.repo.ItemHistory(ctx, itemID)
}

// BranchHistory returns a branch's transactions within [from, to].
func (s *Service) BranchHistory(ctx context.Context, branchID int64, from, to time.Time) ([]Transaction, error) {
	return s.repo.BranchHistory(ctx, branchID, from, to)
}

// VerifyItem replays the transaction history and checks that the delta sum and
// every running-balance snapshot agree with the stored quantity.
func (s *Service) VerifyItem(ctx context.Context, itemID int64) (VerifyResult, error) {
	state, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return VerifyResult{}, err
	}
	history, err := s.repo.ItemHistory(ctx, itemID)
	if err != nil {
		return VerifyResult{}, err
	}
	result := VerifyResult{ItemID: itemID, Quantity: state.Quantity, Consistent: true}
	var running int64
	for _, record := range history {
		running += record.Quantity
		if record.Balance != running && result.FirstMismatchID == 0 {
			result.Consistent = false
			result.FirstMismatchID = record.ID
		}
	}
	result.LedgerSum = running
	if running != state.Quantity {
		result.Consistent = false
	}
	return result, nil
}

func lockItems(ctx context.Context, tx TxRepository, inputs []MovementInput) (map[int64]ItemState, error) {
	ids := make([]int64, 0, len(inputs))
	seen := make(map[int64]struct{}, len(inputs))
	for _, input := range inputs {
		if _, ok := seen[input.ItemID]; !ok {
			seen[input.ItemID] = struct{}{}
			ids = append(ids, input.ItemID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	states := make(map[int64]ItemState, len(ids))
	for _, id := range ids {
		state, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		states[id] = state
	}
	return states, nil
}

func validateMovement(input MovementInput) error {
	if input.BranchID == 0 || input.ItemID == 0 {
		return fmt.Errorf("ledger: branch and item required: %w", shared.ErrItemNotFound)
	}
	if !input.Type.Valid() {
		return fmt.Errorf("ledger: unknown transaction type %q", input.Type)
	}
	if input.Type.Signed() {
		if input.Quantity == 0 {
			return fmt.Errorf("ledger: %s delta: %w", input.Type, shared.ErrInvalidQuantity)
		}
	} else if input.Quantity <= 0 {
		return fmt.Errorf("ledger: %s quantity: %w", input.Type, shared.ErrInvalidQuantity)
	}
	if input.UnitCost.IsNegative() {
		return fmt.Errorf("ledger: %w", shared.ErrInvalidUnitCost)
	}
	return nil
}

func deltaFor(txType TxType, quantity int64) int64 {
	switch txType {
	case TxIssue:
		return -quantity
	case TxReceipt, TxReturn:
		return quantity
	default:
		return quantity
	}
}

func (s *Service) rejected(reason string) {
	if s.metrics != nil && reason != "" {
		s.metrics.MovementRejected(reason)
	}
}

func rejectionReason(err error) string {
	switch shared.KindOf(err) {
	case shared.KindValidation:
		return "validation"
	case shared.KindConflict:
		return "insufficient_stock"
	case shared.KindNotFound:
		return "not_found"
	case shared.KindConcurrency:
		return "contention"
	default:
		return "internal"
	}
}
