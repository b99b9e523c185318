// Package residuals reads and writes observation tables as CSV or XLSX.
//
// A table has a header row. Recognised columns (case-insensitive):
//
//	toa, mjd            arrival time in MJD
//	residual, res       timing residual in seconds
//	residual_us         timing residual in microseconds
//	error, err, sigma   measurement uncertainty in seconds
//	error_us            measurement uncertainty in microseconds
//	backend, be, f      backend label (optional)
package residuals

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"pulsaroutlier/domain/noise"
	"pulsaroutlier/internal/errors"
	"pulsaroutlier/ports"
)

// DefaultSheet is the worksheet read from and written to XLSX files
const DefaultSheet = "Sheet1"

// DefaultBackend labels rows of a table without a backend column
const DefaultBackend = "default"

// DataReader handles reading Excel and CSV residual tables
type DataReader struct {
	log *zap.Logger
}

// NewDataReader creates a reader. The format is chosen per file by extension.
func NewDataReader(logger *zap.Logger) ports.ResidualReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataReader{log: logger.Named("residuals")}
}

// Read loads and validates the observation table at path
func (r *DataReader) Read(ctx context.Context, path string) (*noise.ObservationSet, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NotFound(fmt.Sprintf("residual file %s", path))
	}

	start := time.Now()
	var rows [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readExcel(path)
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unsupported residual file type %q", ext))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	obs, err := parseRows(rows)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid residual table %s", path)
	}
	if err := obs.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	r.log.Info("read residuals",
		zap.String("path", path),
		zap.Int("rows", obs.Len()),
		zap.Strings("backends", obs.BackendNames()),
		zap.Duration("elapsed", time.Since(start)))
	return obs, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(DefaultSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", DefaultSheet, err)
	}
	return rows, nil
}

type columnMap struct {
	toa, residual, errs, backend int
	residualScale, errScale      float64
}

func mapHeader(header []string) (columnMap, error) {
	cm := columnMap{toa: -1, residual: -1, errs: -1, backend: -1, residualScale: 1, errScale: 1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "toa", "mjd":
			cm.toa = i
		case "residual", "res":
			cm.residual = i
		case "residual_us", "res_us":
			cm.residual, cm.residualScale = i, 1e-6
		case "error", "err", "sigma":
			cm.errs = i
		case "error_us", "err_us":
			cm.errs, cm.errScale = i, 1e-6
		case "backend", "be", "f":
			cm.backend = i
		}
	}
	var missing []string
	if cm.toa < 0 {
		missing = append(missing, "toa")
	}
	if cm.residual < 0 {
		missing = append(missing, "residual")
	}
	if cm.errs < 0 {
		missing = append(missing, "error")
	}
	if len(missing) > 0 {
		return cm, errors.InvalidInput(fmt.Sprintf("missing columns: %s", strings.Join(missing, ", ")))
	}
	return cm, nil
}

func parseRows(rows [][]string) (*noise.ObservationSet, error) {
	if len(rows) < 2 {
		return nil, errors.InvalidInput("table must have a header row and at least one data row")
	}
	cm, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	obs := &noise.ObservationSet{}
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		line := i + 2
		toa, err := parseCell(row, cm.toa)
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("row %d toa: %v", line, err))
		}
		res, err := parseCell(row, cm.residual)
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("row %d residual: %v", line, err))
		}
		sigma, err := parseCell(row, cm.errs)
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("row %d error: %v", line, err))
		}
		backend := DefaultBackend
		if cm.backend >= 0 && cm.backend < len(row) && strings.TrimSpace(row[cm.backend]) != "" {
			backend = strings.TrimSpace(row[cm.backend])
		}

		obs.TOAs = append(obs.TOAs, toa)
		obs.Residuals = append(obs.Residuals, res*cm.residualScale)
		obs.Errors = append(obs.Errors, sigma*cm.errScale)
		obs.Backends = append(obs.Backends, backend)
	}
	return obs, nil
}

func parseCell(row []string, idx int) (float64, error) {
	if idx >= len(row) {
		return 0, fmt.Errorf("missing value")
	}
	return strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
