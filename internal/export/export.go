package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"orbsync/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Pending Requests"

// WriteQueueReport renders the current sync queue to an Excel workbook so an
// operator can review what is still waiting before clearing anything.
func WriteQueueReport(path string, entries []models.QueueEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"ID", "Endpoint", "Method", "Retries", "Created", "Last Retry", "Payload"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(sheetName, "A1", "G1", headerStyle)

	for row, e := range entries {
		lastRetry := ""
		if e.LastRetryAt != nil {
			lastRetry = e.LastRetryAt.Format(time.RFC3339)
		}
		values := []any{
			e.ID,
			e.Endpoint,
			e.Method,
			e.RetryCount,
			e.CreatedAt.Format(time.RFC3339),
			lastRetry,
			string(e.Payload),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 30)
	_ = f.SetColWidth(sheetName, "C", "F", 16)
	_ = f.SetColWidth(sheetName, "G", "G", 50)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("error saving report: %w", err)
	}
	return nil
}
