package stats

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type memoryStatsRepo struct {
	facts         []ItemFact
	discrepancies int
}

func (r *memoryStatsRepo) ItemFacts(ctx context.Context, branchID int64) ([]ItemFact, error) {
	return append([]ItemFact(nil), r.facts...), nil
}

func (r *memoryStatsRepo) OpenDiscrepancyCount(ctx context.Context, branchID int64) (int, error) {
	return r.discrepancies, nil
}

func seedFacts(now time.Time) []ItemFact {
	yesterday := now.AddDate(0, 0, -1)
	inTenDays := now.AddDate(0, 0, 10)
	nextYear := now.AddDate(1, 0, 0)
	return []ItemFact{
		{ItemID: 1, Code: "AMOX-500", Name: "Amoxicillin 500mg", CategoryID: 1, CategoryName: "Antibiotics",
			Quantity: 15, ReorderLevel: 20, UnitCost: decimal.NewFromInt(10)},
		{ItemID: 2, Code: "IBU-200", Name: "Ibuprofen 200mg", CategoryID: 2, CategoryName: "Analgesics",
			Quantity: 200, ReorderLevel: 50, UnitCost: decimal.NewFromFloat(0.50), ExpiryDate: &nextYear},
		{ItemID: 3, Code: "INS-10", Name: "Insulin 10ml", CategoryID: 3, CategoryName: "Biologics",
			Quantity: 5, ReorderLevel: 10, UnitCost: decimal.NewFromInt(80), ExpiryDate: &inTenDays},
		{ItemID: 4, Code: "SAL-090", Name: "Saline 0.9%", CategoryID: 2, CategoryName: "Analgesics",
			Quantity: 40, ReorderLevel: 10, UnitCost: decimal.NewFromInt(2), ExpiryDate: &yesterday},
	}
}

func TestSnapshotAggregates(t *testing.T) {
	repo := &memoryStatsRepo{facts: seedFacts(time.Now().UTC()), discrepancies: 2}
	svc := NewService(repo, 30)

	snapshot, err := svc.Snapshot(context.Background(), 1)
	require.NoError(t, err)

	// 15*10 + 200*0.5 + 5*80 + 40*2 = 730
	require.True(t, snapshot.TotalValue.Equal(decimal.NewFromInt(730)), snapshot.TotalValue.String())
	require.Equal(t, 4, snapshot.ItemCount)
	require.Equal(t, 2, snapshot.OpenDiscrepancies)
	require.Equal(t, 1, snapshot.ExpiredCount)
	require.Equal(t, 1, snapshot.ExpiringSoonCount)

	require.Len(t, snapshot.LowStock, 2)
	require.EqualValues(t, 3, snapshot.LowStock[0].ItemID)
	require.EqualValues(t, 1, snapshot.LowStock[1].ItemID)

	require.Len(t, snapshot.Categories, 3)
	require.Equal(t, "Analgesics", snapshot.Categories[0].Name)
	require.Equal(t, 2, snapshot.Categories[0].ItemCount)
	require.True(t, snapshot.Categories[0].Value.Equal(decimal.NewFromInt(180)))
}

func TestSnapshotLowStockBoundary(t *testing.T) {
	repo := &memoryStatsRepo{facts: []ItemFact{
		{ItemID: 1, Code: "A", Quantity: 20, ReorderLevel: 20, UnitCost: decimal.Zero},
		{ItemID: 2, Code: "B", Quantity: 21, ReorderLevel: 20, UnitCost: decimal.Zero},
	}}
	svc := NewService(repo, 30)

	snapshot, err := svc.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, snapshot.LowStock, 1)
	require.EqualValues(t, 1, snapshot.LowStock[0].ItemID)
}

func TestWriteWorkbook(t *testing.T) {
	repo := &memoryStatsRepo{facts: seedFacts(time.Now().UTC()), discrepancies: 1}
	svc := NewService(repo, 30)

	snapshot, err := svc.Snapshot(context.Background(), 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, snapshot))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	value, err := f.GetCellValue("Summary", "B4")
	require.NoError(t, err)
	require.Equal(t, "730.00", value)

	code, err := f.GetCellValue("Low Stock", "A2")
	require.NoError(t, err)
	require.Equal(t, "INS-10", code)

	category, err := f.GetCellValue("Categories", "A2")
	require.NoError(t, err)
	require.Equal(t, "Analgesics", category)
}
