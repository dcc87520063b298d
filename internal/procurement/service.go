package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, []OrderLine, error)
	ListByBranch(ctx context.Context, branchID int64) ([]PurchaseOrder, error)
}

// TxRepository exposes transactional operations used by Service.
type TxRepository interface {
	InsertOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	InsertLine(ctx context.Context, line OrderLine) error
	UpdateStatus(ctx context.Context, orderID int64, from, to Status) error
}

// LedgerPort posts the goods-receipt movements.
type LedgerPort interface {
	RecordBatch(ctx context.Context, inputs []ledger.MovementInput) ([]ledger.Transaction, error)
}

// AuditPort abstracts activity logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service tracks the purchase order lifecycle. Receiving is the only
// transition that touches stock: one ledger receipt per line, posted as a
// single atomic batch.
type Service struct {
	repo     RepositoryPort
	ledger   LedgerPort
	audit    AuditPort
	validate *validator.Validate
}

// NewService builds Service. The audit port may be nil.
func NewService(repo RepositoryPort, ledgerPort LedgerPort, audit AuditPort) *Service {
	return &Service{repo: repo, ledger: ledgerPort, audit: audit, validate: validator.New()}
}

// CreateOrderInput describes a new purchase order.
type CreateOrderInput struct {
	Number       string `validate:"required"`
	BranchID     int64  `validate:"required"`
	Vendor       string `validate:"required"`
	OrderDate    time.Time
	ExpectedDate time.Time
	CreatedBy    int64
	Lines        []OrderLineInput `validate:"min=1,dive"`
}

// OrderLineInput describes one ordered item.
type OrderLineInput struct {
	ItemID   int64 `validate:"required"`
	Quantity int64 `validate:"gt=0"`
	UnitCost decimal.Decimal
}

// CreateOrder persists an order in Draft with its lines.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return PurchaseOrder{}, fmt.Errorf("procurement: %w", err)
	}
	total := decimal.Zero
	for _, line := range input.Lines {
		if line.UnitCost.IsNegative() {
			return PurchaseOrder{}, fmt.Errorf("procurement: %w", shared.ErrInvalidUnitCost)
		}
		total = total.Add(line.UnitCost.Mul(decimal.NewFromInt(line.Quantity)))
	}
	now := time.Now().UTC()
	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = now
	}
	order := PurchaseOrder{
		Number:       input.Number,
		BranchID:     input.BranchID,
		Vendor:       input.Vendor,
		OrderDate:    orderDate,
		ExpectedDate: input.ExpectedDate,
		Status:       StatusDraft,
		Total:        total,
		CreatedBy:    input.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		orderID, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID
		for _, line := range input.Lines {
			if err := tx.InsertLine(ctx, OrderLine{OrderID: orderID, ItemID: line.ItemID, Quantity: line.Quantity, UnitCost: line.UnitCost}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, order, "PO_CREATE", map[string]any{"lines": len(input.Lines)})
	return order, nil
}

// AdvanceStatus moves an order along the transition table. Advancing to
// Received credits the stock first and flips the status last, so a failed
// posting leaves the order in Approved and the receive can be retried. The
// flip is a compare-and-set against the status we read, which makes the
// terminal Received win exactly once under concurrent callers.
func (s *Service) AdvanceStatus(ctx context.Context, orderID int64, next Status, actorID int64) (PurchaseOrder, error) {
	if !next.Valid() {
		return PurchaseOrder{}, fmt.Errorf("procurement: unknown status %q", next)
	}
	order, lines, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !CanTransition(order.Status, next) {
		return PurchaseOrder{}, fmt.Errorf("procurement: %s -> %s: %w", order.Status, next, shared.ErrInvalidTransition)
	}

	if next == StatusReceived {
		// A duplicate reference means an earlier receive already credited
		// this order's lines and only the status flip is outstanding.
		if err := s.postReceipts(ctx, order, lines, actorID); err != nil && !errors.Is(err, shared.ErrDuplicateReference) {
			return PurchaseOrder{}, err
		}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, orderID, order.Status, next)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Status = next
	order.UpdatedAt = time.Now().UTC()

	s.recordAudit(ctx, order, fmt.Sprintf("PO_%s", next), nil)
	return order, nil
}

// postReceipts credits every ordered line in one atomic ledger batch. The
// per-branch reference uniqueness backstops against double-crediting.
func (s *Service) postReceipts(ctx context.Context, order PurchaseOrder, lines []OrderLine, actorID int64) error {
	inputs := make([]ledger.MovementInput, 0, len(lines))
	for i, line := range lines {
		inputs = append(inputs, ledger.MovementInput{
			BranchID:  order.BranchID,
			ItemID:    line.ItemID,
			Type:      ledger.TxReceipt,
			Quantity:  line.Quantity,
			UnitCost:  line.UnitCost,
			Reference: fmt.Sprintf("%s-L%d", order.Number, i+1),
			Reason:    fmt.Sprintf("purchase order %s received", order.Number),
			ActorID:   actorID,
		})
	}
	_, err := s.ledger.RecordBatch(ctx, inputs)
	return err
}

// GetOrder returns the order with its lines.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (PurchaseOrder, []OrderLine, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// ListByBranch lists a branch's orders, newest first.
func (s *Service) ListByBranch(ctx context.Context, branchID int64) ([]PurchaseOrder, error) {
	return s.repo.ListByBranch(ctx, branchID)
}

func (s *Service) recordAudit(ctx context.Context, order PurchaseOrder, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  order.CreatedBy,
		BranchID: order.BranchID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: order.Number,
		Meta:     meta,
	})
}
