package mps

import (
	"fmt"
	"math/rand"

	"github.com/fumin/mpoalgs/tn"
)

var (
	zero = [][]float64{
		{0, 0},
		{0, 0},
	}
	identity = [][]float64{
		{1, 0},
		{0, 1},
	}
	PauliX = [][]float64{
		{0, 1},
		{1, 0},
	}
	PauliZ = [][]float64{
		{1, 0},
		{0, -1},
	}
)

// Sites returns n physical indices of dimension d.
func Sites(n, d int) []tn.Index {
	sites := make([]tn.Index, 0, n)
	for i := range n {
		sites = append(sites, tn.NewIndex(d, tn.Site, fmt.Sprintf("s=%d", i+1)))
	}
	return sites
}

// ProductState returns the product state with site i in basis state states[i].
func ProductState(sites []tn.Index, states []int) *MPS {
	if len(sites) != len(states) {
		panic(fmt.Sprintf("%d %d", len(sites), len(states)))
	}
	n := len(sites)
	links := make([]tn.Index, 0, n)
	for i := 1; i < n; i++ {
		links = append(links, tn.NewIndex(1, tn.Link, linkTag(i)))
	}
	ts := make([]*tn.Tensor, 0, n)
	for i, s := range sites {
		inds := siteLinks(links, i, s)
		t := tn.New(inds...)
		vals := make([]int, len(inds))
		vals[indexPos(inds, s)] = states[i]
		t.Set(1, vals...)
		ts = append(ts, t)
	}
	return NewMPS(ts)
}

// RandomState returns a normalized random state with bond dimensions capped by maxD.
func RandomState(sites []tn.Index, maxD int, rng *rand.Rand) *MPS {
	n := len(sites)
	// The bond dimension between sites i and i+1 is bounded by the dimension of either half.
	bonds := make([]int, n+1)
	bonds[0], bonds[n] = 1, 1
	for i := 1; i < n; i++ {
		bonds[i] = min(bonds[i-1]*sites[i-1].Dim(), maxD)
	}
	for i := n - 1; i >= 1; i-- {
		bonds[i] = min(bonds[i], bonds[i+1]*sites[i].Dim())
	}

	links := make([]tn.Index, 0, n)
	for i := 1; i < n; i++ {
		links = append(links, tn.NewIndex(bonds[i], tn.Link, linkTag(i)))
	}
	ts := make([]*tn.Tensor, 0, n)
	for i, s := range sites {
		inds := siteLinks(links, i, s)
		t := tn.New(inds...)
		data := make([]float64, t.Size())
		for k := range data {
			data[k] = rng.Float64()*2 - 1
		}
		ts = append(ts, tn.FromData(data, inds...))
	}
	m := NewMPS(ts)
	if _, err := m.Normalize(); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return m
}

// siteLinks returns the indices of site i, ordered as left link, physical, right link.
func siteLinks(links []tn.Index, i int, phys ...tn.Index) []tn.Index {
	inds := make([]tn.Index, 0, len(phys)+2)
	if i > 0 {
		inds = append(inds, links[i-1])
	}
	inds = append(inds, phys...)
	if i < len(links) {
		inds = append(inds, links[i])
	}
	return inds
}

func indexPos(inds []tn.Index, j tn.Index) int {
	for k, i := range inds {
		if i.Same(j) {
			return k
		}
	}
	panic(fmt.Sprintf("%v %v", j, inds))
}

// WMPO builds an operator from the bulk tensor w[left][right][out][in].
// The first site takes the last row of w and the last site takes the first column.
func WMPO(sites []tn.Index, w [][][][]float64) *MPO {
	d := len(w)
	first := make([]float64, d)
	first[d-1] = 1
	last := make([]float64, d)
	last[0] = 1
	return boundedMPO(sites, w, first, last)
}

// boundedMPO builds an operator from the bulk tensor w, closing the chain with the boundary vectors first and last.
func boundedMPO(sites []tn.Index, w [][][][]float64, first, last []float64) *MPO {
	n := len(sites)
	d := len(w)
	if n == 1 {
		t := tn.New(sites[0].Primed(1), sites[0])
		for wl := range d {
			for wr := range d {
				c := first[wl] * last[wr]
				if c == 0 {
					continue
				}
				addOp(t, c, w[wl][wr], func(row, col int) []int { return []int{row, col} })
			}
		}
		return NewMPO([]*tn.Tensor{t})
	}

	links := make([]tn.Index, 0, n-1)
	for i := 1; i < n; i++ {
		links = append(links, tn.NewIndex(d, tn.Link, linkTag(i)))
	}
	ts := make([]*tn.Tensor, 0, n)
	for i, s := range sites {
		inds := siteLinks(links, i, s.Primed(1), s)
		t := tn.New(inds...)
		switch {
		case i == 0:
			for wl := range d {
				if first[wl] == 0 {
					continue
				}
				for wr := range d {
					addOp(t, first[wl], w[wl][wr], func(row, col int) []int { return []int{row, col, wr} })
				}
			}
		case i == n-1:
			for wl := range d {
				for wr := range d {
					if last[wr] == 0 {
						continue
					}
					addOp(t, last[wr], w[wl][wr], func(row, col int) []int { return []int{wl, row, col} })
				}
			}
		default:
			for wl := range d {
				for wr := range d {
					addOp(t, 1, w[wl][wr], func(row, col int) []int { return []int{wl, row, col, wr} })
				}
			}
		}
		ts = append(ts, t)
	}
	return NewMPO(ts)
}

func addOp(t *tn.Tensor, c float64, op [][]float64, at func(row, col int) []int) {
	for row := range op {
		for col, v := range op[row] {
			if v == 0 {
				continue
			}
			vals := at(row, col)
			t.Set(t.At(vals...)+c*v, vals...)
		}
	}
}

// Ising returns the transverse field Ising Hamiltonian -ΣZZ - hΣX.
func Ising(sites []tn.Index, h float64) *MPO {
	w := [][][][]float64{
		{identity, zero, zero},
		{PauliZ, zero, zero},
		{scale(-h, PauliX), scale(-1, PauliZ), identity},
	}
	return WMPO(sites, w)
}

// SumOp returns Σ op_i, whose bond dimension is 2.
func SumOp(sites []tn.Index, op [][]float64) *MPO {
	w := [][][][]float64{
		{identityOf(len(op)), zeroOf(len(op))},
		{op, identityOf(len(op))},
	}
	return WMPO(sites, w)
}

// Identity returns the identity operator.
func Identity(sites []tn.Index) *MPO {
	ops := make([][][]float64, 0, len(sites))
	for _, s := range sites {
		ops = append(ops, identityOf(s.Dim()))
	}
	return ProductOp(sites, ops)
}

// ProductOp returns the operator ⊗ ops[i], whose bond dimension is 1.
func ProductOp(sites []tn.Index, ops [][][]float64) *MPO {
	if len(sites) != len(ops) {
		panic(fmt.Sprintf("%d %d", len(sites), len(ops)))
	}
	n := len(sites)
	links := make([]tn.Index, 0, n)
	for i := 1; i < n; i++ {
		links = append(links, tn.NewIndex(1, tn.Link, linkTag(i)))
	}
	ts := make([]*tn.Tensor, 0, n)
	for i, s := range sites {
		inds := siteLinks(links, i, s.Primed(1), s)
		t := tn.New(inds...)
		addOp(t, 1, ops[i], func(row, col int) []int {
			vals := make([]int, len(inds))
			vals[indexPos(inds, s.Primed(1))] = row
			vals[indexPos(inds, s)] = col
			return vals
		})
		ts = append(ts, t)
	}
	return NewMPO(ts)
}

// ParityProjector returns (1 + ⊗X)/2, the projector onto the even sector of the spin flip symmetry.
func ParityProjector(sites []tn.Index) *MPO {
	w := [][][][]float64{
		{identity, zero},
		{zero, PauliX},
	}
	return boundedMPO(sites, w, []float64{1, 1}, []float64{0.5, 0.5})
}

func scale(c float64, x [][]float64) [][]float64 {
	y := make([][]float64, len(x))
	for i := range x {
		y[i] = make([]float64, len(x[i]))
		for j, v := range x[i] {
			y[i][j] = c * v
		}
	}
	return y
}

func identityOf(d int) [][]float64 {
	x := zeroOf(d)
	for i := range d {
		x[i][i] = 1
	}
	return x
}

func zeroOf(d int) [][]float64 {
	x := make([][]float64, d)
	for i := range x {
		x[i] = make([]float64, d)
	}
	return x
}
