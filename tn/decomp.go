package tn

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrZeroTensor is returned when a decomposition is handed a tensor with no weight.
	ErrZeroTensor = errors.New("zero tensor")
	// ErrFactorize is returned when the underlying factorization fails to converge.
	ErrFactorize = errors.New("factorization failed")
)

// Dir selects which factor of a decomposition absorbs the weights.
type Dir int

const (
	// Fromleft leaves the left factor an isometry, the right factor becomes the orthogonality center.
	Fromleft Dir = iota
	// Fromright leaves the right factor an isometry, the left factor becomes the orthogonality center.
	Fromright
)

func (d Dir) String() string {
	switch d {
	case Fromleft:
		return "Fromleft"
	case Fromright:
		return "Fromright"
	default:
		return fmt.Sprintf("Dir(%d)", int(d))
	}
}

// Trunc controls how many states a decomposition keeps.
type Trunc struct {
	// Cutoff is the largest allowed discarded weight, relative to the total weight.
	Cutoff float64
	// MaxDim caps the new bond dimension. Zero means no cap.
	MaxDim int
	// MinDim is the smallest bond dimension kept, weight permitting.
	MinDim int
	// Noise mixes the identity into the density matrix of the kept side, see SVD.
	Noise float64
	// Tag labels the new bond index.
	Tag string
}

// Spectrum describes the outcome of a truncated decomposition.
type Spectrum struct {
	// Weights are the kept density matrix eigenvalues, in descending order.
	Weights []float64
	// TruncErr is the discarded weight relative to the total.
	TruncErr float64
}

// Dim returns the bond dimension that was kept.
func (s Spectrum) Dim() int { return len(s.Weights) }

// truncate returns the number of weights to keep and the relative discarded weight.
// weights must be sorted in descending order and non-negative.
func truncate(weights []float64, tr Trunc) (int, float64) {
	total := floats.Sum(weights)
	n := len(weights)
	var discarded float64
	if tr.MaxDim > 0 {
		for n > tr.MaxDim {
			discarded += weights[n-1]
			n--
		}
	}
	minDim := max(tr.MinDim, 1)
	for n > minDim {
		w := weights[n-1]
		// Exact zeros are always dropped, even when Cutoff is 0.
		if w > 0 && discarded+w > tr.Cutoff*total {
			break
		}
		discarded += w
		n--
	}
	if total == 0 {
		return n, 0
	}
	return n, discarded / total
}

// SVD splits t into a and b joined by a new link index, with a spanning the indices in left.
// With Fromleft, a is an isometry and b carries the singular values; Fromright is the mirror image.
//
// When tr.Noise is positive, the kept basis of the center-less factor is chosen from the density matrix
// ρ = φφᵀ/|φ|² + Noise·1/d instead of the singular vectors, which lets the bond dimension grow into
// directions the current tensor has no weight on.
func SVD(t *Tensor, left []Index, dir Dir, tr Trunc) (a, b *Tensor, spec Spectrum, err error) {
	if t.IsZero() {
		return nil, nil, Spectrum{}, errors.Wrapf(ErrZeroTensor, "%v", t.inds)
	}
	if tr.Noise > 0 {
		return noisySplit(t, left, dir, tr)
	}

	m, right := t.matrix(left)
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return nil, nil, Spectrum{}, errors.Wrapf(ErrFactorize, "svd %v", t.inds)
	}
	s := svd.Values(nil)
	weights := make([]float64, len(s))
	for k, v := range s {
		weights[k] = v * v
	}
	keep, truncErr := truncate(weights, tr)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	rows, cols := m.Dims()
	uk := u.Slice(0, rows, 0, keep)
	vk := v.Slice(0, cols, 0, keep)

	link := NewIndex(keep, Link, tr.Tag)
	// aData is rows x keep, bData is keep x cols.
	aData := make([]float64, rows*keep)
	bData := make([]float64, keep*cols)
	for i := range rows {
		for j := range keep {
			x := uk.At(i, j)
			if dir == Fromright {
				x *= s[j]
			}
			aData[i*keep+j] = x
		}
	}
	for j := range keep {
		for i := range cols {
			x := vk.At(i, j)
			if dir == Fromleft {
				x *= s[j]
			}
			bData[j*cols+i] = x
		}
	}

	a = &Tensor{inds: append(slices.Clone(left), link), data: aData}
	b = &Tensor{inds: append([]Index{link}, right...), data: bData}
	return a, b, Spectrum{Weights: weights[:keep], TruncErr: truncErr}, nil
}

// noisySplit chooses the isometric factor from the noise perturbed density matrix, and projects t onto it.
func noisySplit(t *Tensor, left []Index, dir Dir, tr Trunc) (a, b *Tensor, spec Spectrum, err error) {
	m, right := t.matrix(left)
	iso := left
	if dir == Fromright {
		m = mat.DenseCopyOf(m.T())
		iso = right
	}
	norm2 := mat.Norm(m, 2)
	norm2 *= norm2
	rows, _ := m.Dims()

	rho := mat.NewSymDense(rows, nil)
	rho.SymOuterK(1/norm2, m)
	for i := range rows {
		rho.SetSym(i, i, rho.At(i, i)+tr.Noise/float64(rows))
	}
	u, weights, truncErr, err := eigSym(rho, tr)
	if err != nil {
		return nil, nil, Spectrum{}, errors.Wrap(err, "")
	}
	keep := len(weights)

	link := NewIndex(keep, Link, tr.Tag)
	var center mat.Dense
	center.Mul(u.T(), m)
	isoT := &Tensor{inds: append(slices.Clone(iso), link), data: mat.DenseCopyOf(u).RawMatrix().Data}
	if dir == Fromleft {
		b = &Tensor{inds: append([]Index{link}, right...), data: center.RawMatrix().Data}
		return isoT, b, Spectrum{Weights: weights, TruncErr: truncErr}, nil
	}
	var centerT mat.Dense
	centerT.CloneFrom(center.T())
	a = &Tensor{inds: append(slices.Clone(left), link), data: centerT.RawMatrix().Data}
	return a, isoT.Permute(append([]Index{link}, right...)...), Spectrum{Weights: weights, TruncErr: truncErr}, nil
}

// DiagSym diagonalizes the symmetric tensor rho, whose indices are rows and a second copy of rows
// differing only in prime level or conjugate marker.
// It returns the kept eigenvectors as a tensor over rows and a new link index.
func DiagSym(rho *Tensor, rows []Index, tr Trunc) (*Tensor, Spectrum, error) {
	if rho.IsZero() {
		return nil, Spectrum{}, errors.Wrapf(ErrZeroTensor, "%v", rho.inds)
	}
	cols := make([]Index, 0, len(rows))
	for _, r := range rows {
		var c Index
		for _, i := range rho.inds {
			if i.SameFamily(r) && !i.Same(r) {
				c = i
				break
			}
		}
		if c.IsZero() {
			return nil, Spectrum{}, errors.Wrapf(ErrIndexMismatch, "%v %v", r, rho.inds)
		}
		cols = append(cols, c)
	}
	if len(rows)+len(cols) != len(rho.inds) {
		return nil, Spectrum{}, errors.Wrapf(ErrIndexMismatch, "%v %v", rows, rho.inds)
	}

	p := rho.Permute(append(slices.Clone(rows), cols...)...)
	n := size(rows)
	sym := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (p.data[i*n+j]+p.data[j*n+i])/2)
		}
	}
	u, weights, truncErr, err := eigSym(sym, tr)
	if err != nil {
		return nil, Spectrum{}, errors.Wrap(err, "")
	}

	link := NewIndex(len(weights), Link, tr.Tag)
	ut := &Tensor{inds: append(slices.Clone(rows), link), data: mat.DenseCopyOf(u).RawMatrix().Data}
	return ut, Spectrum{Weights: weights, TruncErr: truncErr}, nil
}

// eigSym returns the kept eigenvectors as columns, with eigenvalues in descending order.
func eigSym(sym *mat.SymDense, tr Trunc) (mat.Matrix, []float64, float64, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, nil, 0, errors.Wrapf(ErrFactorize, "eigen %d", sym.SymmetricDim())
	}
	// Eigenvalues are ascending, flip them.
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	n := len(vals)
	weights := make([]float64, n)
	flipped := mat.NewDense(n, n, nil)
	for k := range n {
		// Round-off can push tiny eigenvalues of a positive matrix below zero.
		weights[k] = max(vals[n-1-k], 0)
		for i := range n {
			flipped.Set(i, k, vecs.At(i, n-1-k))
		}
	}
	if floats.Sum(weights) == 0 {
		return nil, nil, 0, errors.Wrapf(ErrZeroTensor, "eigen %d", n)
	}
	keep, truncErr := truncate(weights, tr)
	return flipped.Slice(0, n, 0, keep), weights[:keep], truncErr, nil
}
