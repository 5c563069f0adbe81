// Package mps implements the chain structure shared by matrix product states and matrix product operators.
//
// Sites are 1-indexed. A chain tracks its orthogonality range [llim, rlim]:
// sites 1..llim are left-orthogonal and sites rlim..N are right-orthogonal.
//
// References:
//   - The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
package mps

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fumin/mpoalgs/tn"
)

// Chain is an ordered sequence of site tensors linked by bond indices.
type Chain struct {
	// id identifies the chain for aliasing checks, copies get a new one.
	id    uuid.UUID
	sites []*tn.Tensor
	llim  int
	rlim  int
}

// MPS is a chain whose sites carry one physical index each.
type MPS struct{ Chain }

// MPO is a chain whose sites carry a physical index at prime level 0 (input) and 1 (output).
type MPO struct{ Chain }

func newChain(sites []*tn.Tensor) Chain {
	return Chain{id: uuid.New(), sites: sites, llim: 0, rlim: len(sites) + 1}
}

// NewMPS returns a state from its site tensors.
func NewMPS(sites []*tn.Tensor) *MPS {
	return &MPS{Chain: newChain(sites)}
}

// NewMPO returns an operator from its site tensors.
func NewMPO(sites []*tn.Tensor) *MPO {
	return &MPO{Chain: newChain(sites)}
}

// ID returns the identity token of the chain.
func (c *Chain) ID() uuid.UUID { return c.id }

// N returns the number of sites.
func (c *Chain) N() int { return len(c.sites) }

// A returns the site tensor at site i.
func (c *Chain) A(i int) *tn.Tensor {
	return c.sites[i-1]
}

// SetA replaces the site tensor at site i, shrinking the orthogonality range as needed.
func (c *Chain) SetA(i int, t *tn.Tensor) {
	c.sites[i-1] = t
	if i <= c.llim {
		c.llim = i - 1
	}
	if i >= c.rlim {
		c.rlim = i + 1
	}
}

// Initialized reports whether the chain has sites and every one of them holds data.
func (c *Chain) Initialized() bool {
	if c == nil || len(c.sites) == 0 {
		return false
	}
	for _, s := range c.sites {
		if s.Empty() {
			return false
		}
	}
	return true
}

// LeftLim returns llim, the last left-orthogonal site.
func (c *Chain) LeftLim() int { return c.llim }

// RightLim returns rlim, the first right-orthogonal site.
func (c *Chain) RightLim() int { return c.rlim }

// SetLims declares sites 1..llim left-orthogonal and rlim..N right-orthogonal.
func (c *Chain) SetLims(llim, rlim int) {
	c.llim, c.rlim = llim, rlim
}

// IsOrtho reports whether the orthogonality range is a single site.
func (c *Chain) IsOrtho() bool {
	return c.llim+2 == c.rlim
}

// OrthoCenter returns the orthogonality center, or -1 if the chain is not in mixed canonical form.
func (c *Chain) OrthoCenter() int {
	if !c.IsOrtho() {
		return -1
	}
	return c.llim + 1
}

// LinkInd returns the bond index between sites i and i+1, or the zero Index if there is none.
func (c *Chain) LinkInd(i int) tn.Index {
	if i < 1 || i >= c.N() {
		return tn.Index{}
	}
	common := tn.OfKind(tn.Common(c.A(i).Inds(), c.A(i+1).Inds()), tn.Link)
	if len(common) == 0 {
		return tn.Index{}
	}
	return common[0]
}

// SiteInds returns the physical indices of site i.
func (c *Chain) SiteInds(i int) []tn.Index {
	return tn.OfKind(c.A(i).Inds(), tn.Site)
}

func (c *Chain) copyChain() Chain {
	sites := make([]*tn.Tensor, len(c.sites))
	// Site tensors are values, sharing them is safe.
	copy(sites, c.sites)
	return Chain{id: uuid.New(), sites: sites, llim: c.llim, rlim: c.rlim}
}

// Copy returns a copy of the state with a new identity.
func (m *MPS) Copy() *MPS {
	return &MPS{Chain: m.copyChain()}
}

// Copy returns a copy of the operator with a new identity.
func (m *MPO) Copy() *MPO {
	return &MPO{Chain: m.copyChain()}
}

// SiteInd returns the physical index of site i of a state.
func (m *MPS) SiteInd(i int) tn.Index {
	s := m.SiteInds(i)
	if len(s) != 1 {
		panic(fmt.Sprintf("%d %v", i, s))
	}
	return s[0]
}

// SiteInd returns the input physical index of site i of an operator.
func (m *MPO) SiteInd(i int) tn.Index {
	for _, s := range m.SiteInds(i) {
		if s.Prime() == 0 {
			return s
		}
	}
	panic(fmt.Sprintf("%d %v", i, m.A(i).Inds()))
}

// MapSites applies f to every site tensor.
func (c *Chain) MapSites(f func(*tn.Tensor) *tn.Tensor) {
	for i, s := range c.sites {
		c.sites[i] = f(s)
	}
}

// SvdBond replaces sites b and b+1 by the decomposition of phi, which spans both sites.
// Fromleft moves the orthogonality center to b+1, Fromright to b.
func (c *Chain) SvdBond(b int, phi *tn.Tensor, dir tn.Dir, tr tn.Trunc) (tn.Spectrum, error) {
	left := tn.Without(c.A(b).Inds(), c.LinkInd(b))
	a, bt, spec, err := tn.SVD(phi, left, dir, tr)
	if err != nil {
		return tn.Spectrum{}, errors.Wrap(err, fmt.Sprintf("bond %d", b))
	}
	c.sites[b-1], c.sites[b] = a, bt
	switch dir {
	case tn.Fromleft:
		c.llim, c.rlim = b, b+2
	default:
		c.llim, c.rlim = b-1, b+1
	}
	return spec, nil
}

// Position moves the orthogonality center to site j without truncation.
// See Section 4.4 Canonical form, Ulrich Schollwock.
func (c *Chain) Position(j int) error {
	if j < 1 || j > c.N() {
		return errors.Errorf("%d %d", j, c.N())
	}
	for c.llim < j-1 {
		if err := c.leftNormalize(c.llim + 1); err != nil {
			return errors.Wrap(err, "")
		}
	}
	for c.rlim > j+1 {
		if err := c.rightNormalize(c.rlim - 1); err != nil {
			return errors.Wrap(err, "")
		}
	}
	return nil
}

// leftNormalize makes site i left-orthogonal and multiplies the remainder into site i+1.
// See Section 4.4.1 Generation of a left-canonical MPS, Ulrich Schollwock.
func (c *Chain) leftNormalize(i int) error {
	link := c.LinkInd(i)
	left := tn.Without(c.A(i).Inds(), link)
	q, r, _, err := tn.SVD(c.A(i), left, tn.Fromleft, tn.Trunc{Tag: linkTag(i)})
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("site %d", i))
	}
	c.sites[i-1] = q
	c.sites[i] = tn.Contract(r, c.A(i+1))
	c.llim = i
	c.rlim = max(c.rlim, i+2)
	return nil
}

// rightNormalize makes site i right-orthogonal and multiplies the remainder into site i-1.
// See Section 4.4.2 Generation of a right-canonical MPS, Ulrich Schollwock.
func (c *Chain) rightNormalize(i int) error {
	link := c.LinkInd(i - 1)
	l, q, _, err := tn.SVD(c.A(i), []tn.Index{link}, tn.Fromright, tn.Trunc{Tag: linkTag(i - 1)})
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("site %d", i))
	}
	c.sites[i-1] = q
	c.sites[i-2] = tn.Contract(c.A(i-1), l)
	c.rlim = i
	c.llim = min(c.llim, i-2)
	return nil
}

// Orthogonalize brings the chain into canonical form with center at site 1, truncating every bond by tr.
func (c *Chain) Orthogonalize(tr tn.Trunc) error {
	n := c.N()
	if err := c.Position(n); err != nil {
		return errors.Wrap(err, "")
	}
	for b := n - 1; b >= 1; b-- {
		phi := tn.Contract(c.A(b), c.A(b+1))
		trb := tr
		if trb.Tag == "" {
			trb.Tag = linkTag(b)
		}
		if _, err := c.SvdBond(b, phi, tn.Fromright, trb); err != nil {
			return errors.Wrap(err, "")
		}
	}
	return nil
}

// MaxLinkDim returns the largest bond dimension.
func (c *Chain) MaxLinkDim() int {
	d := 1
	for i := 1; i < c.N(); i++ {
		if l := c.LinkInd(i); !l.IsZero() {
			d = max(d, l.Dim())
		}
	}
	return d
}

// Normalize scales the state to unit norm and returns the norm it had.
func (m *MPS) Normalize() (float64, error) {
	if !m.IsOrtho() {
		if err := m.Position(1); err != nil {
			return math.NaN(), errors.Wrap(err, "")
		}
	}
	c := m.OrthoCenter()
	norm := m.A(c).Norm()
	if norm == 0 {
		return 0, errors.Wrap(tn.ErrZeroTensor, "")
	}
	m.sites[c-1] = m.A(c).Scale(1 / norm)
	return norm, nil
}

// InnerProduct computes the inner product <x|y>.
// See Section 4.2.1 Efficient evaluation of contractions, Ulrich Schollwock.
func InnerProduct(x, y *MPS) float64 {
	if x.N() != y.N() {
		panic(fmt.Sprintf("%d %d", x.N(), y.N()))
	}

	f := tn.Scalar(1)
	for i := 1; i <= x.N(); i++ {
		// x may be a copy of y and share its bond indices, the marker keeps them apart.
		xi := x.A(i).ConjKind(tn.Link)
		f = tn.Contract(tn.Contract(f, y.A(i)), xi)
	}
	return f.Real()
}

// Expectation computes <x|w|y>.
// See Section 6.2 Applying a Hamiltonian MPO to a mixed canonical state, Ulrich Schollwock.
func Expectation(x *MPS, w *MPO, y *MPS) float64 {
	if x.N() != w.N() || w.N() != y.N() {
		panic(fmt.Sprintf("%d %d %d", x.N(), w.N(), y.N()))
	}

	f := tn.Scalar(1)
	for i := 1; i <= x.N(); i++ {
		xi := x.A(i).ConjKind(tn.Link).Prime(tn.Site, 1)
		f = tn.ContractAll(f, y.A(i), w.A(i), xi)
	}
	return f.Real()
}

// Norm returns the norm of m.
func Norm(m *MPS) float64 {
	return math.Sqrt(max(InnerProduct(m, m), 0))
}

// Dense contracts the whole state into a tensor over its physical indices, ordered by site.
func Dense(m *MPS) *tn.Tensor {
	sites := make([]tn.Index, 0, m.N())
	var t *tn.Tensor
	for i := 1; i <= m.N(); i++ {
		sites = append(sites, m.SiteInd(i))
		t = tn.ContractAll(t, m.A(i))
	}
	return t.Permute(sites...)
}

// DenseOperator contracts the whole operator into a tensor ordered as outputs s1'...sN' followed by inputs s1...sN.
func DenseOperator(w *MPO) *tn.Tensor {
	outs := make([]tn.Index, 0, w.N())
	ins := make([]tn.Index, 0, w.N())
	var t *tn.Tensor
	for i := 1; i <= w.N(); i++ {
		s := w.SiteInd(i)
		outs = append(outs, s.Primed(1))
		ins = append(ins, s)
		t = tn.ContractAll(t, w.A(i))
	}
	return t.Permute(append(outs, ins...)...)
}

func linkTag(i int) string {
	return fmt.Sprintf("l=%d", i)
}
