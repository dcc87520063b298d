package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/shared"
)

type memoryCatalogRepo struct {
	nextID     int64
	nextCatID  int64
	items      map[int64]Item
	categories map[int64]Category
}

func newMemoryCatalogRepo() *memoryCatalogRepo {
	return &memoryCatalogRepo{
		nextID:     1,
		nextCatID:  1,
		items:      map[int64]Item{},
		categories: map[int64]Category{},
	}
}

func (m *memoryCatalogRepo) Insert(_ context.Context, item Item) (Item, error) {
	for _, existing := range m.items {
		if existing.BranchID == item.BranchID && existing.Code == item.Code {
			return Item{}, shared.ErrDuplicateCode
		}
	}
	item.ID = m.nextID
	m.nextID++
	m.items[item.ID] = item
	return item, nil
}

func (m *memoryCatalogRepo) Update(_ context.Context, item Item) error {
	stored, ok := m.items[item.ID]
	if !ok {
		return shared.ErrItemNotFound
	}
	// Quantity stays ledger-owned, like the SQL UPDATE that skips the column.
	item.QuantityOnHand = stored.QuantityOnHand
	m.items[item.ID] = item
	return nil
}

func (m *memoryCatalogRepo) SetActive(_ context.Context, id int64, active bool) error {
	item, ok := m.items[id]
	if !ok {
		return shared.ErrItemNotFound
	}
	item.IsActive = active
	m.items[id] = item
	return nil
}

func (m *memoryCatalogRepo) Get(_ context.Context, id int64) (Item, error) {
	item, ok := m.items[id]
	if !ok {
		return Item{}, shared.ErrItemNotFound
	}
	return item, nil
}

func (m *memoryCatalogRepo) GetByCode(_ context.Context, branchID int64, code string) (Item, error) {
	for _, item := range m.items {
		if item.BranchID == branchID && item.Code == code {
			return item, nil
		}
	}
	return Item{}, shared.ErrItemNotFound
}

func (m *memoryCatalogRepo) List(_ context.Context, filters ListFilters) ([]Item, error) {
	var out []Item
	for _, item := range m.items {
		if item.BranchID != filters.BranchID {
			continue
		}
		if !filters.IncludeInactive && !item.IsActive {
			continue
		}
		if filters.CategoryID != 0 && item.CategoryID != filters.CategoryID {
			continue
		}
		if filters.Search != "" {
			needle := strings.ToLower(filters.Search)
			if !strings.Contains(strings.ToLower(item.Name), needle) &&
				!strings.Contains(strings.ToLower(item.Code), needle) {
				continue
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (m *memoryCatalogRepo) InsertCategory(_ context.Context, category Category) (Category, error) {
	category.ID = m.nextCatID
	m.nextCatID++
	m.categories[category.ID] = category
	return category, nil
}

func (m *memoryCatalogRepo) ListCategories(_ context.Context) ([]Category, error) {
	out := make([]Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

// openingLedger applies movements straight onto the repo's item quantity, the
// same observable effect ledger.Service.Record has.
type openingLedger struct {
	repo   *memoryCatalogRepo
	posted []ledger.MovementInput
	fail   error
}

func (l *openingLedger) Record(_ context.Context, input ledger.MovementInput) (ledger.Transaction, error) {
	if l.fail != nil {
		return ledger.Transaction{}, l.fail
	}
	item, ok := l.repo.items[input.ItemID]
	if !ok {
		return ledger.Transaction{}, shared.ErrItemNotFound
	}
	item.QuantityOnHand += input.Quantity
	l.repo.items[input.ItemID] = item
	l.posted = append(l.posted, input)
	return ledger.Transaction{
		ItemID:    input.ItemID,
		Type:      input.Type,
		Quantity:  input.Quantity,
		Reference: input.Reference,
		Balance:   item.QuantityOnHand,
	}, nil
}

func newCatalogFixture() (*Service, *memoryCatalogRepo, *openingLedger) {
	repo := newMemoryCatalogRepo()
	led := &openingLedger{repo: repo}
	return NewService(repo, led), repo, led
}

func validCreateInput() CreateItemInput {
	return CreateItemInput{
		BranchID:        1,
		Code:            "AMOX-500",
		Name:            "Amoxicillin 500mg",
		Unit:            "box",
		InitialQuantity: 40,
		ReorderLevel:    10,
		ReorderQuantity: 50,
		UnitCost:        decimal.NewFromFloat(12.50),
		SellingPrice:    decimal.NewFromFloat(18.00),
	}
}

func TestCreateItemPostsOpeningMovement(t *testing.T) {
	svc, repo, led := newCatalogFixture()
	ctx := context.Background()

	created, err := svc.CreateItem(ctx, validCreateInput())
	require.NoError(t, err)
	require.EqualValues(t, 40, created.QuantityOnHand)

	require.Len(t, led.posted, 1)
	opening := led.posted[0]
	require.Equal(t, ledger.TxAdjustment, opening.Type)
	require.EqualValues(t, 40, opening.Quantity)
	require.Equal(t, "OPEN-AMOX-500", opening.Reference)
	require.EqualValues(t, created.ID, opening.ItemID)

	stored, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.EqualValues(t, 40, stored.QuantityOnHand)

	// An empty item needs no opening movement.
	empty := validCreateInput()
	empty.Code = "PARA-500"
	empty.InitialQuantity = 0
	created, err = svc.CreateItem(ctx, empty)
	require.NoError(t, err)
	require.EqualValues(t, 0, created.QuantityOnHand)
	require.Len(t, led.posted, 1)
}

func TestCreateItemOpeningFailureLeavesZeroBalance(t *testing.T) {
	svc, _, led := newCatalogFixture()
	led.fail = errors.New("ledger unavailable")
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, validCreateInput())
	require.Error(t, err)
	require.Empty(t, led.posted)

	// The item exists but carries no stock, so the sum of its transaction
	// deltas still matches its stored quantity.
	stored, err := svc.GetByCode(ctx, 1, "AMOX-500")
	require.NoError(t, err)
	require.EqualValues(t, 0, stored.QuantityOnHand)
}

func TestCreateItemRejectsDuplicateCode(t *testing.T) {
	svc, _, _ := newCatalogFixture()
	ctx := context.Background()

	first, err := svc.CreateItem(ctx, validCreateInput())
	require.NoError(t, err)
	require.True(t, first.IsActive)
	require.EqualValues(t, 40, first.QuantityOnHand)

	_, err = svc.CreateItem(ctx, validCreateInput())
	require.ErrorIs(t, err, shared.ErrDuplicateCode)

	// Same code in another branch is a different item.
	other := validCreateInput()
	other.BranchID = 2
	_, err = svc.CreateItem(ctx, other)
	require.NoError(t, err)
}

func TestCreateItemValidation(t *testing.T) {
	svc, _, led := newCatalogFixture()
	ctx := context.Background()

	negQty := validCreateInput()
	negQty.InitialQuantity = -1
	_, err := svc.CreateItem(ctx, negQty)
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)

	negCost := validCreateInput()
	negCost.UnitCost = decimal.NewFromInt(-1)
	_, err = svc.CreateItem(ctx, negCost)
	require.ErrorIs(t, err, shared.ErrInvalidUnitCost)

	noName := validCreateInput()
	noName.Name = ""
	_, err = svc.CreateItem(ctx, noName)
	require.Error(t, err)

	require.Empty(t, led.posted)
}

func TestUpdateItemLeavesQuantityAlone(t *testing.T) {
	svc, _, _ := newCatalogFixture()
	ctx := context.Background()

	created, err := svc.CreateItem(ctx, validCreateInput())
	require.NoError(t, err)

	updated, err := svc.UpdateItem(ctx, created.ID, UpdateItemInput{
		Name:         "Amoxicillin 500mg caps",
		Unit:         "box",
		ReorderLevel: 20,
		UnitCost:     decimal.NewFromFloat(13.00),
		SellingPrice: decimal.NewFromFloat(19.00),
	})
	require.NoError(t, err)
	require.Equal(t, "Amoxicillin 500mg caps", updated.Name)
	require.EqualValues(t, 20, updated.ReorderLevel)
	require.EqualValues(t, 40, updated.QuantityOnHand)
	require.Equal(t, created.Code, updated.Code)
}

func TestDeactivateHidesFromListings(t *testing.T) {
	svc, _, _ := newCatalogFixture()
	ctx := context.Background()

	created, err := svc.CreateItem(ctx, validCreateInput())
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateItem(ctx, created.ID))

	active, err := svc.ListByBranch(ctx, 1, false)
	require.NoError(t, err)
	require.Empty(t, active)

	all, err := svc.ListByBranch(ctx, 1, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.False(t, all[0].IsActive)

	// History lookups by id keep working.
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Code, got.Code)
}

func TestSearchMatchesNameAndCode(t *testing.T) {
	svc, _, _ := newCatalogFixture()
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, validCreateInput())
	require.NoError(t, err)

	second := validCreateInput()
	second.Code = "PARA-500"
	second.Name = "Paracetamol 500mg"
	_, err = svc.CreateItem(ctx, second)
	require.NoError(t, err)

	byName, err := svc.Search(ctx, 1, "paracet")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	require.Equal(t, "PARA-500", byName[0].Code)

	byCode, err := svc.Search(ctx, 1, "AMOX")
	require.NoError(t, err)
	require.Len(t, byCode, 1)

	none, err := svc.Search(ctx, 1, "ibuprofen")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestCategories(t *testing.T) {
	svc, _, _ := newCatalogFixture()
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, "ABX", "Antibiotics", true)
	require.NoError(t, err)
	require.True(t, cat.Controlled)

	_, err = svc.CreateCategory(ctx, "", "Nameless", false)
	require.Error(t, err)

	input := validCreateInput()
	input.CategoryID = cat.ID
	_, err = svc.CreateItem(ctx, input)
	require.NoError(t, err)

	inCat, err := svc.ListByCategory(ctx, 1, cat.ID)
	require.NoError(t, err)
	require.Len(t, inCat, 1)
}
