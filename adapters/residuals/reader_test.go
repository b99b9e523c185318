package residuals

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pulsaroutlier/domain/noise"
	"pulsaroutlier/internal/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRead_CSV(t *testing.T) {
	path := writeFile(t, "res.csv", "MJD,residual_us,error_us,backend\n"+
		"# comment line\n"+
		"55000.1,1.5,0.5,guppi\n"+
		"55000.2,-2,0.5,\n"+
		"55010,30,1,puppi\n")

	obs, err := NewDataReader(nil).Read(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, 3, obs.Len())
	assert.Equal(t, []float64{55000.1, 55000.2, 55010}, obs.TOAs)
	assert.InDeltaSlice(t, []float64{1.5e-6, -2e-6, 30e-6}, obs.Residuals, 1e-18)
	assert.InDeltaSlice(t, []float64{0.5e-6, 0.5e-6, 1e-6}, obs.Errors, 1e-18)
	assert.Equal(t, []string{"guppi", DefaultBackend, "puppi"}, obs.Backends)
}

func TestRead_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "res.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"toa", "residual", "error"},
		{55000.0, 1e-6, 1e-7},
		{55001.0, -3e-6, 2e-7},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(DefaultSheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	obs, err := NewDataReader(nil).Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, obs.Len())
	assert.InDelta(t, -3e-6, obs.Residuals[1], 1e-18)
	assert.Equal(t, []string{DefaultBackend}, obs.BackendNames())
}

func TestRead_Errors(t *testing.T) {
	ctx := context.Background()
	r := NewDataReader(nil)

	tests := []struct {
		name    string
		file    string
		content string
		code    string
	}{
		{"missing column", "a.csv", "toa,residual\n1,2\n", errors.CodeInvalidInput},
		{"header only", "b.csv", "toa,residual,error\n", errors.CodeInvalidInput},
		{"bad number", "c.csv", "toa,residual,error\n1,abc,1\n", errors.CodeInvalidInput},
		{"zero error", "d.csv", "toa,residual,error\n1,2,0\n", errors.CodeInvalidInput},
		{"unsupported type", "e.json", "{}", errors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Read(ctx, writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err), "got %v", err)
		})
	}

	_, err := r.Read(ctx, filepath.Join(t.TempDir(), "absent.csv"))
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestWrite_RoundTrip(t *testing.T) {
	obs := &noise.ObservationSet{
		TOAs:      []float64{53005.123456789, 53006.5},
		Residuals: []float64{1.234567890123e-6, -7.5e-7},
		Errors:    []float64{3e-7, 4.1e-7},
		Backends:  []string{"L-wide", "S-wide"},
	}
	for _, name := range []string{"out.csv", "out.xlsx"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Write(path, obs))

			got, err := NewDataReader(nil).Read(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, obs.Backends, got.Backends)
			assert.InDeltaSlice(t, obs.TOAs, got.TOAs, 1e-9)
			assert.InDeltaSlice(t, obs.Residuals, got.Residuals, 1e-18)
			assert.InDeltaSlice(t, obs.Errors, got.Errors, 1e-18)
		})
	}
}
