// Package export writes company and notification lists as .xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/docuhub/portal/internal/api"
)

const (
	// CompaniesSheet names the sheet written by Companies.
	CompaniesSheet = "Companies"
	// NotificationsSheet names the sheet written by Notifications.
	NotificationsSheet = "Notifications"
)

// Companies writes one row per company under a header row.
func Companies(w io.Writer, companies []api.Company) error {
	rows := make([][]any, 0, len(companies))
	for _, c := range companies {
		rows = append(rows, []any{c.ID, c.Name, c.TaxID, c.Email})
	}
	return write(w, CompaniesSheet, []any{"ID", "Name", "Tax ID", "Email"}, []float64{38, 32, 18, 32}, rows)
}

// Notifications writes one row per notification under a header row. Times are UTC.
func Notifications(w io.Writer, items []api.Notification) error {
	rows := make([][]any, 0, len(items))
	for _, n := range items {
		read := "no"
		if n.Read {
			read = "yes"
		}
		rows = append(rows, []any{n.ID, n.Title, n.Message, read, n.CreatedAt.UTC().Format(time.RFC3339)})
	}
	return write(w, NotificationsSheet, []any{"ID", "Title", "Message", "Read", "Created at"}, []float64{38, 24, 60, 8, 22}, rows)
}

func write(w io.Writer, sheet string, header []any, widths []float64, rows [][]any) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
