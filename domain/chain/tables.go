package chain

import (
	"errors"
	"fmt"
)

// Table names, one persisted file per variable group
const (
	TableParams = "chain"
	TableB      = "bchain"
	TableTheta  = "thetachain"
	TableZ      = "zchain"
	TableAlpha  = "alphachain"
	TablePout   = "poutchain"
	TableDF     = "dfchain"
)

// TableNames lists every table in persistence order
var TableNames = []string{TableParams, TableB, TableTheta, TableZ, TableAlpha, TablePout, TableDF}

var ErrRaggedTables = errors.New("chain tables have different lengths")

// Tables holds the sampled history of every variable group, one row per sweep.
// Row i is the state entering sweep i.
type Tables struct {
	Params [][]float64
	B      [][]float64
	Theta  []float64
	Z      [][]float64
	Alpha  [][]float64
	Pout   [][]float64
	DF     []float64
}

// NewTables preallocates room for capacity rows
func NewTables(capacity int) *Tables {
	return &Tables{
		Params: make([][]float64, 0, capacity),
		B:      make([][]float64, 0, capacity),
		Theta:  make([]float64, 0, capacity),
		Z:      make([][]float64, 0, capacity),
		Alpha:  make([][]float64, 0, capacity),
		Pout:   make([][]float64, 0, capacity),
		DF:     make([]float64, 0, capacity),
	}
}

// Row is one sweep's worth of state
type Row struct {
	Params []float64
	B      []float64
	Theta  float64
	Z      []float64
	Alpha  []float64
	Pout   []float64
	DF     float64
}

// Append copies r onto the end of every table
func (t *Tables) Append(r Row) {
	t.Params = append(t.Params, clone(r.Params))
	t.B = append(t.B, clone(r.B))
	t.Theta = append(t.Theta, r.Theta)
	t.Z = append(t.Z, clone(r.Z))
	t.Alpha = append(t.Alpha, clone(r.Alpha))
	t.Pout = append(t.Pout, clone(r.Pout))
	t.DF = append(t.DF, r.DF)
}

// At returns row i
func (t *Tables) At(i int) Row {
	return Row{
		Params: t.Params[i],
		B:      t.B[i],
		Theta:  t.Theta[i],
		Z:      t.Z[i],
		Alpha:  t.Alpha[i],
		Pout:   t.Pout[i],
		DF:     t.DF[i],
	}
}

// Lengths returns the row count of each table keyed by table name
func (t *Tables) Lengths() map[string]int {
	return map[string]int{
		TableParams: len(t.Params),
		TableB:      len(t.B),
		TableTheta:  len(t.Theta),
		TableZ:      len(t.Z),
		TableAlpha:  len(t.Alpha),
		TablePout:   len(t.Pout),
		TableDF:     len(t.DF),
	}
}

// MinLen is the length of the shortest table
func (t *Tables) MinLen() int {
	min := -1
	for _, n := range t.Lengths() {
		if min < 0 || n < min {
			min = n
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

// Len is the common row count. It returns ErrRaggedTables when tables disagree.
func (t *Tables) Len() (int, error) {
	n := len(t.Theta)
	for name, l := range t.Lengths() {
		if l != n {
			return 0, fmt.Errorf("%w: %s has %d rows, thetachain has %d", ErrRaggedTables, name, l, n)
		}
	}
	return n, nil
}

// Truncate cuts every table to its first n rows
func (t *Tables) Truncate(n int) {
	t.Params = t.Params[:min(n, len(t.Params))]
	t.B = t.B[:min(n, len(t.B))]
	t.Theta = t.Theta[:min(n, len(t.Theta))]
	t.Z = t.Z[:min(n, len(t.Z))]
	t.Alpha = t.Alpha[:min(n, len(t.Alpha))]
	t.Pout = t.Pout[:min(n, len(t.Pout))]
	t.DF = t.DF[:min(n, len(t.DF))]
}

// Head returns a view of the first n rows. The row slices are shared.
func (t *Tables) Head(n int) *Tables {
	h := *t
	h.Truncate(n)
	return &h
}

func clone(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
