package residuals

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"pulsaroutlier/domain/noise"
)

var header = []string{"toa", "residual", "error", "backend"}

// Write stores obs at path, as XLSX when the extension is .xlsx and CSV otherwise
func Write(path string, obs *noise.ObservationSet) error {
	if strings.ToLower(filepath.Ext(path)) == ".xlsx" {
		return writeExcel(path, obs)
	}
	return writeCSV(path, obs)
}

func writeCSV(path string, obs *noise.ObservationSet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for i := 0; i < obs.Len(); i++ {
		rec := []string{
			strconv.FormatFloat(obs.TOAs[i], 'g', -1, 64),
			strconv.FormatFloat(obs.Residuals[i], 'g', -1, 64),
			strconv.FormatFloat(obs.Errors[i], 'g', -1, 64),
			obs.Backends[i],
		}
		if err := w.Write(rec); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeExcel(path string, obs *noise.ObservationSet) error {
	f := excelize.NewFile()
	defer f.Close()

	row := make([]interface{}, len(header))
	for j, h := range header {
		row[j] = h
	}
	if err := f.SetSheetRow(DefaultSheet, "A1", &row); err != nil {
		return err
	}
	for i := 0; i < obs.Len(); i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := []interface{}{obs.TOAs[i], obs.Residuals[i], obs.Errors[i], obs.Backends[i]}
		if err := f.SetSheetRow(DefaultSheet, cell, &vals); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}
