package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

const (
	linksSheet   = "Links"
	summarySheet = "Summary"
)

func writeXLSX(w io.Writer, record analyzer.SiteRecord) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", linksSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	if err := f.SetSheetRow(linksSheet, "A1", &[]any{"Title", "Description", "URL"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, l := range record.Links {
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(linksSheet, cellName, &[]any{l.Title, l.Description, l.URL}); err != nil {
			return fmt.Errorf("write link row %d: %w", i+1, err)
		}
	}
	if err := f.SetCellStyle(linksSheet, "A1", "C1", header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(linksSheet, "A", "A", 30); err != nil {
		return err
	}
	if err := f.SetColWidth(linksSheet, "B", "C", 60); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	rows := [][]any{
		{"URL", record.URL},
		{"Domain", record.Domain},
		{"Title", record.Title},
		{"Description", record.Description},
		{"Last Updated", record.LastUpdated.UTC().Format("2006-01-02T15:04:05Z")},
		{"Links", len(record.Links)},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cellName, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), header); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
