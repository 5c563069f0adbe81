package mps

import (
	"fmt"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/fumin/mpoalgs/tn"
)

const (
	mpsLeftAxis  = 0
	mpsUpAxis    = 1
	mpsRightAxis = 2

	mpoLeftAxis  = 0
	mpoRightAxis = 1
	mpoUpAxis    = 2
	mpoDownAxis  = 3
)

// FromSites imports a state stored as a list of dense site tensors with axes (left, up, right).
// The outer bonds of the first and last sites must have dimension 1, and every element must be real.
func FromSites(sites []*tensor.Dense) (*MPS, error) {
	n := len(sites)
	if n == 0 {
		return nil, errors.Errorf("no sites")
	}
	if err := checkBoundary(sites, mpsLeftAxis, mpsRightAxis); err != nil {
		return nil, errors.Wrap(err, "")
	}
	links := make([]tn.Index, 0, n)
	for i := 1; i < n; i++ {
		links = append(links, tn.NewIndex(sites[i-1].Shape()[mpsRightAxis], tn.Link, linkTag(i)))
	}

	ts := make([]*tn.Tensor, 0, n)
	for i, s := range sites {
		phys := tn.NewIndex(s.Shape()[mpsUpAxis], tn.Site, fmt.Sprintf("s=%d", i+1))
		inds := siteLinks(links, i, phys)
		t := tn.New(inds...)
		for ijk, v := range s.All() {
			if imag(v) != 0 {
				return nil, errors.Errorf("site %d %v %v", i+1, ijk, v)
			}
			t.Set(float64(real(v)), dropBoundary(ijk, i, n, mpsLeftAxis, mpsRightAxis)...)
		}
		ts = append(ts, t)
	}
	return NewMPS(ts), nil
}

// FromOperatorSites imports an operator stored as a list of dense site tensors with axes (left, right, up, down),
// where up is the output and down the input of each site.
func FromOperatorSites(ws []*tensor.Dense, sites []tn.Index) (*MPO, error) {
	n := len(ws)
	if n != len(sites) {
		return nil, errors.Errorf("%d %d", n, len(sites))
	}
	if err := checkBoundary(ws, mpoLeftAxis, mpoRightAxis); err != nil {
		return nil, errors.Wrap(err, "")
	}
	links := make([]tn.Index, 0, n)
	for i := 1; i < n; i++ {
		links = append(links, tn.NewIndex(ws[i-1].Shape()[mpoRightAxis], tn.Link, linkTag(i)))
	}

	ts := make([]*tn.Tensor, 0, n)
	for i, w := range ws {
		s := sites[i]
		if w.Shape()[mpoUpAxis] != s.Dim() || w.Shape()[mpoDownAxis] != s.Dim() {
			return nil, errors.Errorf("site %d %#v %v", i+1, w.Shape(), s)
		}
		inds := siteLinks(links, i, s.Primed(1), s)
		t := tn.New(inds...)
		for ijk, v := range w.All() {
			if imag(v) != 0 {
				return nil, errors.Errorf("site %d %v %v", i+1, ijk, v)
			}
			// Reorder to (left, up, down, right) before dropping the outer bonds.
			lrud := []int{ijk[mpoLeftAxis], ijk[mpoUpAxis], ijk[mpoDownAxis], ijk[mpoRightAxis]}
			t.Set(float64(real(v)), dropBoundary(lrud, i, n, 0, 3)...)
		}
		ts = append(ts, t)
	}
	return NewMPO(ts), nil
}

// ToSites exports a state as a list of dense site tensors with axes (left, up, right).
func ToSites(m *MPS) []*tensor.Dense {
	n := m.N()
	sites := make([]*tensor.Dense, 0, n)
	for i := 1; i <= n; i++ {
		leftD, rightD := 1, 1
		if l := m.LinkInd(i - 1); !l.IsZero() {
			leftD = l.Dim()
		}
		if r := m.LinkInd(i); !r.IsZero() {
			rightD = r.Dim()
		}
		a := m.A(i).Permute(siteOrder(m, i)...)
		d := tensor.Zeros(leftD, m.SiteInd(i).Dim(), rightD)
		for ijk := range d.All() {
			d.SetAt(ijk, complex(float32(a.At(dropBoundary(ijk, i-1, n, mpsLeftAxis, mpsRightAxis)...)), 0))
		}
		sites = append(sites, d)
	}
	return sites
}

func siteOrder(m *MPS, i int) []tn.Index {
	inds := make([]tn.Index, 0, 3)
	if l := m.LinkInd(i - 1); !l.IsZero() {
		inds = append(inds, l)
	}
	inds = append(inds, m.SiteInd(i))
	if r := m.LinkInd(i); !r.IsZero() {
		inds = append(inds, r)
	}
	return inds
}

func checkBoundary(sites []*tensor.Dense, leftAxis, rightAxis int) error {
	if d := sites[0].Shape()[leftAxis]; d != 1 {
		return errors.Errorf("left boundary %d", d)
	}
	if d := sites[len(sites)-1].Shape()[rightAxis]; d != 1 {
		return errors.Errorf("right boundary %d", d)
	}
	return nil
}

// dropBoundary removes the outer bond coordinates of site i, which chains do not carry.
func dropBoundary(ijk []int, i, n, leftAxis, rightAxis int) []int {
	vals := make([]int, 0, len(ijk))
	for k, v := range ijk {
		if (k == leftAxis && i == 0) || (k == rightAxis && i == n-1) {
			continue
		}
		vals = append(vals, v)
	}
	return vals
}
