// Package export renders visitor history as spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"time"

	"gatehouse/internal/models"

	"github.com/xuri/excelize/v2"
)

// HistorySheet is the sheet name of the history workbook.
const HistorySheet = "Visitor History"

// HistoryHeader lists the exported columns in order.
var HistoryHeader = []string{
	"ID",
	"Visitor Name",
	"Phone",
	"Flat",
	"Purpose",
	"Status",
	"Permission",
	"Pre-Approved",
	"Guard",
	"Entry Time",
	"Exit Time",
	"Logged At",
}

var columnWidths = []float64{8, 24, 16, 10, 24, 20, 14, 12, 18, 20, 20, 20}

// HistoryXLSX writes records into a single-sheet workbook. Times are
// formatted in loc, or UTC when loc is nil.
func HistoryXLSX(records []models.VisitorRecord, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(HistorySheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, 1, toAny(HistoryHeader)); err != nil {
		return nil, err
	}
	last, err := excelize.CoordinatesToCellName(len(HistoryHeader), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(HistorySheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("set header style: %w", err)
	}

	for i, w := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(HistorySheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set width of %s: %w", col, err)
		}
	}

	for i := range records {
		r := &records[i]
		preApproved := "No"
		if r.IsPreApproved {
			preApproved = "Yes"
		}
		row := []any{
			r.ID,
			r.VisitorName,
			r.VisitorPhone,
			r.FlatNumber,
			r.Purpose,
			string(r.Status),
			string(r.PermissionStatus),
			preApproved,
			r.GuardName,
			formatTime(r.EntryTime, loc),
			formatTime(r.ExitTime, loc),
			formatTime(&r.CreatedAt, loc),
		}
		if err := writeRow(f, i+2, row); err != nil {
			return nil, err
		}
	}

	if err := f.SetPanes(HistorySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(HistorySheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
