package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medledger/medledger/internal/catalog"
	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/shared"
)

type memoryTransferRepo struct {
	transfers map[int64]Transfer
	nextID    int64
	// failStatusUpdates makes the next n UpdateStatus calls fail.
	failStatusUpdates int
}

func newMemoryTransferRepo() *memoryTransferRepo {
	return &memoryTransferRepo{transfers: make(map[int64]Transfer)}
}

func (r *memoryTransferRepo) Insert(ctx context.Context, transfer Transfer) (Transfer, error) {
	r.nextID++
	transfer.ID = r.nextID
	r.transfers[transfer.ID] = transfer
	return transfer, nil
}

func (r *memoryTransferRepo) Get(ctx context.Context, id int64) (Transfer, error) {
	transfer, ok := r.transfers[id]
	if !ok {
		return Transfer{}, shared.ErrNotFound
	}
	return transfer, nil
}

func (r *memoryTransferRepo) UpdateStatus(ctx context.Context, id int64, status Status, reason string, completedAt *time.Time) error {
	if r.failStatusUpdates > 0 {
		r.failStatusUpdates--
		return errors.New("status write failed")
	}
	transfer, ok := r.transfers[id]
	if !ok {
		return shared.ErrNotFound
	}
	transfer.Status = status
	transfer.RejectReason = reason
	transfer.CompletedAt = completedAt
	r.transfers[id] = transfer
	return nil
}

func (r *memoryTransferRepo) ListPending(ctx context.Context, branchID int64) ([]Transfer, error) {
	pending := []Transfer{}
	for _, transfer := range r.transfers {
		if transfer.Status == StatusPending && (transfer.SourceBranch == branchID || transfer.DestBranch == branchID) {
			pending = append(pending, transfer)
		}
	}
	return pending, nil
}

// fakeLedger applies batches all-or-nothing against in-memory balances and
// enforces reference uniqueness, the same contract ledger.Service.RecordBatch
// provides.
type fakeLedger struct {
	balances map[int64]int64
	refs     map[string]struct{}
	posted   []ledger.MovementInput
}

func newFakeLedger(balances map[int64]int64) *fakeLedger {
	return &fakeLedger{balances: balances, refs: map[string]struct{}{}}
}

func (l *fakeLedger) RecordBatch(ctx context.Context, inputs []ledger.MovementInput) ([]ledger.Transaction, error) {
	staged := make(map[int64]int64, len(l.balances))
	for id, qty := range l.balances {
		staged[id] = qty
	}
	records := make([]ledger.Transaction, 0, len(inputs))
	for _, input := range inputs {
		if _, ok := l.refs[input.Reference]; ok {
			return nil, fmt.Errorf("ledger: reference %q: %w", input.Reference, shared.ErrDuplicateReference)
		}
		delta := input.Quantity
		if input.Type == ledger.TxIssue {
			delta = -delta
		}
		next := staged[input.ItemID] + delta
		if next < 0 {
			return nil, fmt.Errorf("ledger: %w", shared.ErrInsufficientStock)
		}
		staged[input.ItemID] = next
		records = append(records, ledger.Transaction{
			BranchID: input.BranchID, ItemID: input.ItemID, Type: input.Type,
			Quantity: delta, Reference: input.Reference, Balance: next,
		})
	}
	l.balances = staged
	for _, input := range inputs {
		l.refs[input.Reference] = struct{}{}
	}
	l.posted = append(l.posted, inputs...)
	return records, nil
}

type fakeCatalog struct {
	items map[int64]catalog.Item
}

func (c *fakeCatalog) Get(ctx context.Context, id int64) (catalog.Item, error) {
	item, ok := c.items[id]
	if !ok {
		return catalog.Item{}, shared.ErrItemNotFound
	}
	return item, nil
}

func (c *fakeCatalog) GetByCode(ctx context.Context, branchID int64, code string) (catalog.Item, error) {
	for _, item := range c.items {
		if item.BranchID == branchID && item.Code == code {
			return item, nil
		}
	}
	return catalog.Item{}, shared.ErrItemNotFound
}

func newFixture(sourceQty int64) (*Service, *memoryTransferRepo, *fakeLedger) {
	repo := newMemoryTransferRepo()
	led := newFakeLedger(map[int64]int64{1: sourceQty, 2: 0})
	cat := &fakeCatalog{items: map[int64]catalog.Item{
		1: {ID: 1, BranchID: 1, Code: "AMOX-500", IsActive: true},
		2: {ID: 2, BranchID: 2, Code: "AMOX-500", IsActive: true},
	}}
	return NewService(repo, led, cat, nil, nil), repo, led
}

func TestInitiateLeavesStockUntouched(t *testing.T) {
	svc, _, led := newFixture(100)

	transfer, err := svc.Initiate(context.Background(), 1, 1, 2, 40, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPending, transfer.Status)
	require.True(t, strings.HasPrefix(transfer.Reference, "TRF-"))
	require.Empty(t, led.posted)
	require.EqualValues(t, 100, led.balances[1])
}

func TestCompletePostsBothLegs(t *testing.T) {
	svc, repo, led := newFixture(100)
	ctx := context.Background()

	transfer, err := svc.Initiate(ctx, 1, 1, 2, 40, 7)
	require.NoError(t, err)

	completed, err := svc.Complete(ctx, transfer.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	require.Len(t, led.posted, 2)
	require.Equal(t, ledger.TxIssue, led.posted[0].Type)
	require.Equal(t, ledger.TxReceipt, led.posted[1].Type)
	require.Equal(t, transfer.Reference+"-OUT", led.posted[0].Reference)
	require.Equal(t, transfer.Reference+"-IN", led.posted[1].Reference)
	require.EqualValues(t, 60, led.balances[1])
	require.EqualValues(t, 40, led.balances[2])

	_, err = svc.Complete(ctx, transfer.ID, 9)
	require.ErrorIs(t, err, shared.ErrTransferNotPending)
	require.Len(t, led.posted, 2)

	stored, err := repo.Get(ctx, transfer.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
}

func TestCompleteInsufficientStockLeavesNoPartialState(t *testing.T) {
	svc, repo, led := newFixture(10)
	ctx := context.Background()

	transfer, err := svc.Initiate(ctx, 1, 1, 2, 40, 7)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, transfer.ID, 9)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	require.Empty(t, led.posted)
	require.EqualValues(t, 10, led.balances[1])
	require.EqualValues(t, 0, led.balances[2])

	stored, err := repo.Get(ctx, transfer.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
}

func TestCompleteMissingDestinationItem(t *testing.T) {
	repo := newMemoryTransferRepo()
	led := newFakeLedger(map[int64]int64{1: 50})
	cat := &fakeCatalog{items: map[int64]catalog.Item{
		1: {ID: 1, BranchID: 1, Code: "AMOX-500", IsActive: true},
	}}
	svc := NewService(repo, led, cat, nil, nil)
	ctx := context.Background()

	transfer, err := svc.Initiate(ctx, 1, 1, 2, 10, 7)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, transfer.ID, 9)
	require.ErrorIs(t, err, shared.ErrItemNotFound)
	require.Empty(t, led.posted)
}

func TestCompleteRetriesAfterStatusFlipFailure(t *testing.T) {
	svc, repo, led := newFixture(100)
	ctx := context.Background()

	transfer, err := svc.Initiate(ctx, 1, 1, 2, 40, 7)
	require.NoError(t, err)

	// First attempt moves the stock but the status write dies.
	repo.failStatusUpdates = 1
	_, err = svc.Complete(ctx, transfer.ID, 9)
	require.Error(t, err)
	require.Len(t, led.posted, 2)
	require.EqualValues(t, 60, led.balances[1])
	require.EqualValues(t, 40, led.balances[2])
	stored, err := repo.Get(ctx, transfer.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)

	// The retry finds the leg references already in the ledger and only
	// repeats the flip; the stock moves exactly once.
	completed, err := svc.Complete(ctx, transfer.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.Len(t, led.posted, 2)
	require.EqualValues(t, 60, led.balances[1])
	require.EqualValues(t, 40, led.balances[2])
}

func TestRejectIsTerminal(t *testing.T) {
	svc, repo, led := newFixture(100)
	ctx := context.Background()

	transfer, err := svc.Initiate(ctx, 1, 1, 2, 40, 7)
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, transfer.ID, "wrong destination")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "wrong destination", rejected.RejectReason)
	require.Empty(t, led.posted)

	_, err = svc.Complete(ctx, transfer.ID, 9)
	require.ErrorIs(t, err, shared.ErrTransferNotPending)

	_, err = svc.Reject(ctx, transfer.ID, "again")
	require.ErrorIs(t, err, shared.ErrTransferNotPending)

	stored, err := repo.Get(ctx, transfer.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, stored.Status)
}

func TestInitiateValidation(t *testing.T) {
	svc, _, _ := newFixture(100)
	ctx := context.Background()

	_, err := svc.Initiate(ctx, 1, 1, 2, 0, 7)
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)

	_, err = svc.Initiate(ctx, 1, 1, 1, 10, 7)
	require.Error(t, err)

	_, err = svc.Initiate(ctx, 2, 1, 2, 10, 7)
	require.ErrorIs(t, err, shared.ErrItemNotFound)
}

func TestListPendingCoversBothSides(t *testing.T) {
	svc, _, _ := newFixture(100)
	ctx := context.Background()

	_, err := svc.Initiate(ctx, 1, 1, 2, 5, 7)
	require.NoError(t, err)

	fromSource, err := svc.ListPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, fromSource, 1)

	fromDest, err := svc.ListPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, fromDest, 1)

	elsewhere, err := svc.ListPending(ctx, 3)
	require.NoError(t, err)
	require.Empty(t, elsewhere)
}
