// Package export writes the transaction collection as an XLSX workbook with
// one "Transactions" sheet.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"cashbook/internal/core"
)

const (
	SheetName   = "Transactions"
	FileName    = "Transactions.xlsx"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ErrNothingToExport is returned for an empty collection.
var ErrNothingToExport = errors.New("No transactions to export!")

var headers = []string{"Date", "Category", "Type", "Amount"}

// WriteXLSX writes ts to w in collection order.
func WriteXLSX(w io.Writer, ts []core.Transaction) error {
	if len(ts) == 0 {
		return ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		f.SetCellStyle(SheetName, "A1", "D1", bold)
	}

	for i, t := range ts {
		row := i + 2
		f.SetCellValue(SheetName, fmt.Sprintf("A%d", row), t.Date.String())
		f.SetCellValue(SheetName, fmt.Sprintf("B%d", row), t.Category)
		f.SetCellValue(SheetName, fmt.Sprintf("C%d", row), string(t.Type))
		if err := f.SetCellFloat(SheetName, fmt.Sprintf("D%d", row), t.Amount.Float64(), -1, 64); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}
	f.SetColWidth(SheetName, "A", "A", 12)
	f.SetColWidth(SheetName, "B", "B", 20)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
