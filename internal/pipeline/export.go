package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"reviewdash/internal"
)

// ExportRows picks the exporter by the output file extension.
func ExportRows(rows []internal.OutputRecord, outputPath string) error {
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".xlsx":
		return ExportRowsToXLSX(rows, outputPath)
	case ".json":
		return ExportRowsToJSON(rows, outputPath)
	default:
		return fmt.Errorf("unsupported output format: %s", outputPath)
	}
}

func ExportRowsToXLSX(rows []internal.OutputRecord, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range internal.OutputColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		for col, value := range row.Values() {
			cell, _ := excelize.CoordinatesToCellName(col+1, r)
			_ = f.SetCellStr(sheet, cell, value)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func ExportRowsToJSON(rows []internal.OutputRecord, outputPath string) error {
	if rows == nil {
		rows = []internal.OutputRecord{}
	}
	buf := bytes.NewBuffer(nil)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, buf.Bytes(), 0o644)
}
