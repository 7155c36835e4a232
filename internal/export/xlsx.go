package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"spendwise/internal/core"
	"spendwise/internal/ledger"
)

const (
	TransactionsSheet = "Transactions"
	SummarySheet      = "Summary"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var transactionHeaders = []string{"Date", "Title", "Category", "Amount", "Message"}

// FileName returns the attachment name for an export taken at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("spendwise_%s.xlsx", now.Format("20060102"))
}

// WriteWorkbook renders snap as an XLSX workbook with a transaction list and
// a balance summary. Dates are rendered in loc.
func WriteWorkbook(w io.Writer, snap ledger.Snapshot, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TransactionsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeTransactions(f, snap.Transactions, loc, money); err != nil {
		return err
	}
	if err := writeSummary(f, snap, money); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTransactions(f *excelize.File, txns []core.Transaction, loc *time.Location, money int) error {
	sheet := TransactionsSheet
	for i, h := range transactionHeaders {
		if err := f.SetCellValue(sheet, fmt.Sprintf("%c1", 'A'+i), h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for idx, t := range txns {
		row := idx + 2
		values := []any{t.Date.In(loc).Format("2006-01-02"), t.Title, t.Category, t.Amount.Float(), t.Message}
		for col, v := range values {
			if err := f.SetCellValue(sheet, fmt.Sprintf("%c%d", 'A'+col, row), v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}
	if len(txns) > 0 {
		if err := f.SetCellStyle(sheet, "D2", fmt.Sprintf("D%d", len(txns)+1), money); err != nil {
			return fmt.Errorf("style amounts: %w", err)
		}
	}

	f.SetColWidth(sheet, "A", "A", 12)
	f.SetColWidth(sheet, "B", "B", 30)
	f.SetColWidth(sheet, "C", "C", 16)
	f.SetColWidth(sheet, "D", "D", 12)
	f.SetColWidth(sheet, "E", "E", 40)
	return nil
}

func writeSummary(f *excelize.File, snap ledger.Snapshot, money int) error {
	sheet := SummarySheet
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	rows := [][]any{
		{"Balance", snap.Balance.Amount.Float()},
		{"Income", snap.Balance.Income.Float()},
	}
	for _, src := range core.IncomeSources() {
		if v, ok := snap.Balance.IncomeSources[src.Name]; ok {
			rows = append(rows, []any{"Income: " + src.Name, v.Float()})
		}
	}
	rows = append(rows, []any{"Total expenses", snap.TotalExpenses().Float()})

	for i, r := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetCellStyle(sheet, "B1", fmt.Sprintf("B%d", len(rows)), money); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	f.SetColWidth(sheet, "A", "A", 24)
	return nil
}
