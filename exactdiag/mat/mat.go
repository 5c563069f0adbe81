// Package mat implements sparse real matrices in coordinate format, used to assemble reference Hamiltonians.
package mat

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	PauliX = [][]float64{
		{0, 1},
		{1, 0},
	}
	PauliZ = [][]float64{
		{1, 0},
		{0, -1},
	}
)

type vRowCol struct {
	v   float64
	row int
	col int
}

// COO is a sparse matrix whose elements are kept in row-major order.
type COO struct {
	rows int
	cols int
	Data []vRowCol

	m map[[2]int]float64
}

func M(dense [][]float64) *COO {
	m := &COO{rows: len(dense), cols: len(dense[0]), Data: make([]vRowCol, 0), m: make(map[[2]int]float64)}
	for i, row := range dense {
		for j, v := range row {
			if v == 0 {
				continue
			}
			m.Data = append(m.Data, vRowCol{v: v, row: i, col: j})
		}
	}
	return m
}

func COOZeros(rows, cols int) *COO {
	m := M([][]float64{{0}})
	m.Zeros(rows, cols)
	return m
}

func COOIdentity(rows int) *COO {
	m := M([][]float64{{0}})
	m.Zeros(rows, rows)
	for i := 0; i < rows; i++ {
		m.Data = append(m.Data, vRowCol{v: 1, row: i, col: i})
	}
	return m
}

func (m *COO) Rows() int { return m.rows }
func (m *COO) Cols() int { return m.cols }

func (m *COO) Zeros(rows, cols int) {
	m.rows, m.cols = rows, cols
	m.Data = m.Data[:0]
}

func (m *COO) Scalar(v float64) {
	m.rows, m.cols = 1, 1
	m.Data = m.Data[:0]
	m.Data = append(m.Data, vRowCol{v: v, row: 0, col: 0})
}

func (a *COO) Equal(b *COO) bool {
	if a.rows != b.rows || a.cols != b.cols {
		return false
	}
	return slices.Equal(a.Data, b.Data)
}

// Slice returns the submatrix in the row range yBoundN and column range xBoundN.
// Negative bounds count from the end.
func (m *COO) Slice(yBoundN, xBoundN [2]int) *COO {
	yBound, xBound := yBoundN, xBoundN
	for i := 0; i < 2; i++ {
		if yBound[i] < 0 {
			yBound[i] += m.rows
		}
		if xBound[i] < 0 {
			xBound[i] += m.cols
		}
	}

	s := &COO{rows: yBound[1] - yBound[0], cols: xBound[1] - xBound[0], Data: make([]vRowCol, 0), m: make(map[[2]int]float64)}
	for _, v := range m.Data {
		if v.row < yBound[0] {
			continue
		}
		if v.row >= yBound[1] {
			break
		}
		if v.col < xBound[0] || v.col >= xBound[1] {
			continue
		}
		s.Data = append(s.Data, vRowCol{v: v.v, row: v.row - yBound[0], col: v.col - xBound[0]})
	}
	return s
}

// Add sets a to a + c*b.
func (a *COO) Add(c float64, b *COO) {
	if a.rows != b.rows || a.cols != b.cols {
		panic(fmt.Sprintf("%d %d %d %d", a.rows, a.cols, b.rows, b.cols))
	}
	clear(b.m)
	for _, v := range b.Data {
		b.m[[2]int{v.row, v.col}] = v.v
	}

	for i, av := range a.Data {
		byx := [2]int{av.row, av.col}
		bv := b.m[byx]
		delete(b.m, byx)

		a.Data[i].v = av.v + c*bv
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	for yx, bv := range b.m {
		a.Data = append(a.Data, vRowCol{v: c * bv, row: yx[0], col: yx[1]})
	}
	slices.SortFunc(a.Data, rowMajor)
	clear(b.m)
}

// Kron sets a to the Kronecker product a⊗b.
func (a *COO) Kron(b *COO) {
	rows := a.rows * b.rows
	cols := a.cols * b.cols
	a.rows, a.cols = rows, cols

	prevElemNum := len(a.Data)
	for i := prevElemNum - 1; i >= 0; i-- {
		av := a.Data[i]
		a.Data[i].v = 0
		for _, bv := range b.Data {
			ky := av.row*b.rows + bv.row
			kx := av.col*b.cols + bv.col
			a.Data = append(a.Data, vRowCol{v: av.v * bv.v, row: ky, col: kx})
		}
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	slices.SortFunc(a.Data, rowMajor)
}

// Dense returns m as a gonum matrix.
func (m *COO) Dense() *mat.Dense {
	d := mat.NewDense(m.rows, m.cols, nil)
	for _, v := range m.Data {
		d.Set(v.row, v.col, v.v)
	}
	return d
}

func (m *COO) String() string {
	clear(m.m)
	for _, v := range m.Data {
		m.m[[2]int{v.row, v.col}] = v.v
	}

	lines := []string{}
	for i := 0; i < m.rows; i++ {
		cs := []string{}
		for j := 0; j < m.cols; j++ {
			cs = append(cs, format(m.m[[2]int{i, j}]))
		}
		lines = append(lines, strings.Join(cs, "\t"))
	}

	clear(m.m)
	return strings.Join(lines, "\n")
}

type ValVec struct {
	Val float64
	Vec []float64
}

// Eigen returns the eigenpairs of the symmetric matrix m in ascending order of eigenvalue.
func (m *COO) Eigen() ([]ValVec, error) {
	if m.rows != m.cols {
		return nil, errors.Errorf("%d %d", m.rows, m.cols)
	}
	sym := mat.NewSymDense(m.rows, nil)
	for _, v := range m.Data {
		if v.row > v.col {
			continue
		}
		sym.SetSym(v.row, v.col, v.v)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, errors.Errorf("eigen %d", m.rows)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	vvs := make([]ValVec, 0, len(vals))
	for i, v := range vals {
		vec := make([]float64, 0, m.rows)
		for j := 0; j < m.rows; j++ {
			vec = append(vec, vecs.At(j, i))
		}
		vvs = append(vvs, ValVec{Val: v, Vec: vec})
	}
	slices.SortFunc(vvs, func(a, b ValVec) int { return cmp.Compare(a.Val, b.Val) })
	return vvs, nil
}

func rowMajor(a, b vRowCol) int {
	if c := cmp.Compare(a.row, b.row); c != 0 {
		return c
	}
	return cmp.Compare(a.col, b.col)
}

func format(v float64) string {
	// If v is 0 or -0, return "0" immediately to avoid returning "-0".
	if v == 0 {
		return " 0"
	}

	s := fmt.Sprintf("%v", v)

	// Add a space before non-negative numbers to align with other negative numbers in the same column.
	if v >= 0 {
		s = " " + s
	}

	return s
}
