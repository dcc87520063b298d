package stats

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteWorkbook renders a snapshot as an xlsx workbook with a summary sheet, a
// category breakdown and the low-stock listing.
func WriteWorkbook(w io.Writer, snapshot Snapshot) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	printer := message.NewPrinter(language.English)
	summary := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(summary, "Summary"); err != nil {
		return err
	}

	totalValue, _ := snapshot.TotalValue.Float64()
	summaryRows := [][]interface{}{
		{"branch_id", snapshot.BranchID},
		{"taken_at", snapshot.TakenAt.Format("2006-01-02 15:04:05")},
		{"active_items", snapshot.ItemCount},
		{"total_value", printer.Sprintf("%.2f", totalValue)},
		{"low_stock_items", len(snapshot.LowStock)},
		{"expired_items", snapshot.ExpiredCount},
		{"expiring_soon_items", snapshot.ExpiringSoonCount},
		{"open_discrepancies", snapshot.OpenDiscrepancies},
	}
	for i, row := range summaryRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow("Summary", cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet("Categories"); err != nil {
		return err
	}
	header := []interface{}{"category", "items", "value"}
	if err := f.SetSheetRow("Categories", "A1", &header); err != nil {
		return err
	}
	for i, breakdown := range snapshot.Categories {
		row := []interface{}{breakdown.Name, breakdown.ItemCount, breakdown.Value.StringFixed(2)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow("Categories", cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet("Low Stock"); err != nil {
		return err
	}
	header = []interface{}{"code", "name", "quantity", "reorder_level"}
	if err := f.SetSheetRow("Low Stock", "A1", &header); err != nil {
		return err
	}
	for i, item := range snapshot.LowStock {
		row := []interface{}{item.Code, item.Name, item.Quantity, item.ReorderLevel}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow("Low Stock", cell, &row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("stats: write workbook: %w", err)
	}
	return nil
}
