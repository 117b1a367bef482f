package exporter

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	apperrors "mortfit/internal/errors"
)

// FileWorkbook collects every table of a run into one spreadsheet.
const FileWorkbook = "model_run.xlsx"

// Sheet is one tab of the run workbook: a header row followed by records.
type Sheet struct {
	Name    string
	Headers []string
	Records [][]string
}

// WriteWorkbook writes the sheets into a single Excel workbook under the
// output directory. Sheet order is preserved.
func (w *CSVWriter) WriteWorkbook(sheets []Sheet) error {
	if len(sheets) == 0 {
		return apperrors.NewExportError("workbook needs at least one sheet", nil)
	}

	fullPath := w.resolvePath(FileWorkbook)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return apperrors.NewExportError("failed to create output directory", err)
	}

	slog.Info("Writing workbook",
		slog.String("full_path", fullPath),
		slog.Int("sheet_count", len(sheets)))

	f := excelize.NewFile()
	defer f.Close()

	for _, sheet := range sheets {
		if _, err := f.NewSheet(sheet.Name); err != nil {
			return apperrors.NewExportError("failed creating sheet "+sheet.Name, err)
		}
		if err := writeSheetRow(f, sheet.Name, 1, sheet.Headers); err != nil {
			return err
		}
		for i, record := range sheet.Records {
			if err := writeSheetRow(f, sheet.Name, i+2, record); err != nil {
				return err
			}
		}
	}

	// Drop the default sheet so the workbook opens on the first table.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return apperrors.NewExportError("failed removing default sheet", err)
	}

	if err := f.SaveAs(fullPath); err != nil {
		return apperrors.NewExportError("failed saving workbook", err)
	}
	return nil
}

func writeSheetRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return apperrors.NewExportError("bad cell coordinates", err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return apperrors.NewExportError("failed writing row to sheet "+sheet, err)
	}
	return nil
}
