package google

import (
	"fmt"
	"strings"

	gsheet "google.golang.org/api/sheets/v4"

	"spendwise/internal/core"
)

// Column layout: date, user, title, category, amount, message, id.
const idColumn = "G"

func transactionRow(userID string, t core.Transaction) []any {
	return []any{
		t.Date.Format("2006-01-02"),
		userID,
		t.Title,
		t.Category,
		t.Amount.String(),
		t.Message,
		t.ID,
	}
}

// findRowByID returns the zero-based row index whose first cell equals id,
// or -1.
func findRowByID(values [][]any, id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1
	}
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i
		}
	}
	return -1
}

func sheetIDByTitle(sheets []*gsheet.Sheet, title string) (int64, bool) {
	for _, s := range sheets {
		if s == nil || s.Properties == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(s.Properties.Title), strings.TrimSpace(title)) {
			return s.Properties.SheetId, true
		}
	}
	return 0, false
}

func rowRef(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheet, row+1, idColumn, row+1)
}
