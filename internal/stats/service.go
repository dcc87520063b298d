package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ItemFact is the read-side projection of one active item.
type ItemFact struct {
	ItemID       int64
	Code         string
	Name         string
	CategoryID   int64
	CategoryName string
	Quantity     int64
	ReorderLevel int64
	UnitCost     decimal.Decimal
	ExpiryDate   *time.Time
}

// Repository reads the projections the aggregations are computed from.
type Repository interface {
	ItemFacts(ctx context.Context, branchID int64) ([]ItemFact, error)
	OpenDiscrepancyCount(ctx context.Context, branchID int64) (int, error)
}

// LowStockItem is one entry of the low-stock listing.
type LowStockItem struct {
	ItemID       int64
	Code         string
	Name         string
	Quantity     int64
	ReorderLevel int64
}

// CategoryBreakdown aggregates count and value per category.
type CategoryBreakdown struct {
	CategoryID int64
	Name       string
	ItemCount  int
	Value      decimal.Decimal
}

// Snapshot is a point-in-time aggregation over a branch. It is recomputed on
// every request; nothing here is cached state.
type Snapshot struct {
	BranchID          int64
	TakenAt           time.Time
	ItemCount         int
	TotalValue        decimal.Decimal
	LowStock          []LowStockItem
	ExpiredCount      int
	ExpiringSoonCount int
	Categories        []CategoryBreakdown
	OpenDiscrepancies int
}

// Service computes read-only aggregations over catalog and ledger state.
type Service struct {
	repo           Repository
	expirySoonDays int
}

// NewService builds Service. expirySoonDays bounds the expiring-soon window.
func NewService(repo Repository, expirySoonDays int) *Service {
	if expirySoonDays <= 0 {
		expirySoonDays = 30
	}
	return &Service{repo: repo, expirySoonDays: expirySoonDays}
}

// Snapshot aggregates the branch's active items and open discrepancies.
func (s *Service) Snapshot(ctx context.Context, branchID int64) (Snapshot, error) {
	facts, err := s.repo.ItemFacts(ctx, branchID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stats: item facts: %w", err)
	}
	openCount, err := s.repo.OpenDiscrepancyCount(ctx, branchID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stats: discrepancies: %w", err)
	}

	now := time.Now().UTC()
	soonCutoff := now.AddDate(0, 0, s.expirySoonDays)
	snapshot := Snapshot{
		BranchID:          branchID,
		TakenAt:           now,
		ItemCount:         len(facts),
		TotalValue:        decimal.Zero,
		LowStock:          []LowStockItem{},
		OpenDiscrepancies: openCount,
	}
	byCategory := map[int64]*CategoryBreakdown{}
	for _, fact := range facts {
		value := fact.UnitCost.Mul(decimal.NewFromInt(fact.Quantity))
		snapshot.TotalValue = snapshot.TotalValue.Add(value)

		if fact.Quantity <= fact.ReorderLevel {
			snapshot.LowStock = append(snapshot.LowStock, LowStockItem{
				ItemID:       fact.ItemID,
				Code:         fact.Code,
				Name:         fact.Name,
				Quantity:     fact.Quantity,
				ReorderLevel: fact.ReorderLevel,
			})
		}
		if fact.ExpiryDate != nil {
			switch {
			case fact.ExpiryDate.Before(now):
				snapshot.ExpiredCount++
			case !fact.ExpiryDate.After(soonCutoff):
				snapshot.ExpiringSoonCount++
			}
		}
		breakdown, ok := byCategory[fact.CategoryID]
		if !ok {
			breakdown = &CategoryBreakdown{CategoryID: fact.CategoryID, Name: fact.CategoryName, Value: decimal.Zero}
			byCategory[fact.CategoryID] = breakdown
		}
		breakdown.ItemCount++
		breakdown.Value = breakdown.Value.Add(value)
	}

	// Most urgent first.
	sort.Slice(snapshot.LowStock, func(i, j int) bool {
		return snapshot.LowStock[i].Quantity < snapshot.LowStock[j].Quantity
	})
	for _, breakdown := range byCategory {
		snapshot.Categories = append(snapshot.Categories, *breakdown)
	}
	sort.Slice(snapshot.Categories, func(i, j int) bool {
		return snapshot.Categories[i].Name < snapshot.Categories[j].Name
	})
	return snapshot, nil
}
