// Package chainstore persists chain tables as whitespace-delimited text,
// one file per variable group and one row per sweep, with no header.
package chainstore

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"pulsaroutlier/domain/chain"
	"pulsaroutlier/ports"
)

const fileExt = ".txt"

// TextStore reads and writes chain tables under a directory
type TextStore struct {
	dir string
	log *zap.Logger
}

// NewTextStore creates a store rooted at dir
func NewTextStore(dir string, logger *zap.Logger) ports.ChainStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextStore{dir: dir, log: logger.Named("chainstore")}
}

// Path returns the file backing a table
func (s *TextStore) Path(table string) string {
	return filepath.Join(s.dir, table+fileExt)
}

// Save writes every table to a temporary file and renames it into place,
// so each file is either the previous or the new version
func (s *TextStore) Save(ctx context.Context, t *chain.Tables) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create chain directory: %w", err)
	}
	for _, name := range chain.TableNames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeTable(name, tableRows(t, name)); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func (s *TextStore) writeTable(name string, rows [][]float64) error {
	f, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	w := bufio.NewWriter(f)
	if err := writeRows(w, rows); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path(name))
}

func writeRows(w io.Writer, rows [][]float64) error {
	buf := make([]byte, 0, 256)
	for _, row := range rows {
		buf = buf[:0]
		for j, v := range row {
			if j > 0 {
				buf = append(buf, ' ')
			}
			buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		}
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// Load reads every table. A missing file reads as an empty table; an error
// is returned only when no table exists at all.
func (s *TextStore) Load(ctx context.Context) (*chain.Tables, error) {
	t := &chain.Tables{}
	found := 0
	for _, name := range chain.TableNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := s.readTable(name)
		if os.IsNotExist(err) {
			s.log.Info("chain table missing", zap.String("table", name))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		found++
		setTableRows(t, name, rows)
	}
	if found == 0 {
		return nil, fmt.Errorf("no chain tables in %s: %w", s.dir, os.ErrNotExist)
	}
	return t, nil
}

// readTable parses a table. Reading stops at the first row whose width
// differs from the first row, which is how an interrupted write shows up.
func (s *TextStore) readTable(name string) ([][]float64, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<28)

	var rows [][]float64
	width := -1
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if width < 0 {
			width = len(fields)
		}
		if len(fields) != width {
			s.log.Info("dropping incomplete chain row",
				zap.String("table", name), zap.Int("line", line),
				zap.Int("fields", len(fields)), zap.Int("expected", width))
			break
		}
		row := make([]float64, width)
		bad := false
		for j, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				bad = true
				break
			}
			row[j] = v
		}
		if bad {
			s.log.Info("dropping unparsable chain row", zap.String("table", name), zap.Int("line", line))
			break
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Exists reports whether any table file is present
func (s *TextStore) Exists(ctx context.Context) (bool, error) {
	for _, name := range chain.TableNames {
		_, err := os.Stat(s.Path(name))
		if err == nil {
			return true, nil
		}
		if !os.IsNotExist(err) {
			return false, err
		}
	}
	return false, nil
}

func tableRows(t *chain.Tables, name string) [][]float64 {
	switch name {
	case chain.TableParams:
		return t.Params
	case chain.TableB:
		return t.B
	case chain.TableZ:
		return t.Z
	case chain.TableAlpha:
		return t.Alpha
	case chain.TablePout:
		return t.Pout
	case chain.TableTheta:
		return column(t.Theta)
	case chain.TableDF:
		return column(t.DF)
	}
	return nil
}

func setTableRows(t *chain.Tables, name string, rows [][]float64) {
	switch name {
	case chain.TableParams:
		t.Params = rows
	case chain.TableB:
		t.B = rows
	case chain.TableZ:
		t.Z = rows
	case chain.TableAlpha:
		t.Alpha = rows
	case chain.TablePout:
		t.Pout = rows
	case chain.TableTheta:
		t.Theta = flatten(rows)
	case chain.TableDF:
		t.DF = flatten(rows)
	}
}

func column(v []float64) [][]float64 {
	rows := make([][]float64, len(v))
	for i := range v {
		rows[i] = v[i : i+1]
	}
	return rows
}

func flatten(rows [][]float64) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if len(r) != 1 {
			break
		}
		out = append(out, r[0])
	}
	return out
}
