package tn

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrIndexMismatch is returned when two tensors do not carry the same set of indices.
	ErrIndexMismatch = errors.New("index mismatch")
)

// Tensor is a dense real tensor with labeled indices.
// Data is stored in row-major order of the indices.
type Tensor struct {
	inds []Index
	data []float64
}

// New returns a zero tensor over inds.
func New(inds ...Index) *Tensor {
	checkDistinct(inds)
	return &Tensor{inds: slices.Clone(inds), data: make([]float64, size(inds))}
}

// FromData returns a tensor over inds holding a copy of data.
func FromData(data []float64, inds ...Index) *Tensor {
	if len(data) != size(inds) {
		panic(fmt.Sprintf("%d %v", len(data), dims(inds)))
	}
	checkDistinct(inds)
	return &Tensor{inds: slices.Clone(inds), data: slices.Clone(data)}
}

// Scalar returns a rank 0 tensor.
func Scalar(v float64) *Tensor {
	return &Tensor{data: []float64{v}}
}

func checkDistinct(inds []Index) {
	for k, i := range inds {
		if indexOf(inds[k+1:], i) >= 0 {
			panic(fmt.Sprintf("duplicate index %v in %v", i, inds))
		}
	}
}

// Empty reports whether t holds no data.
func (t *Tensor) Empty() bool {
	return t == nil || len(t.data) == 0
}

// Inds returns a copy of the indices of t.
func (t *Tensor) Inds() []Index {
	return slices.Clone(t.inds)
}

func (t *Tensor) Rank() int { return len(t.inds) }

// Size returns the number of elements.
func (t *Tensor) Size() int { return len(t.data) }

// Has reports whether t carries the index i.
func (t *Tensor) Has(i Index) bool {
	return indexOf(t.inds, i) >= 0
}

// Data returns a copy of the elements in row-major order.
func (t *Tensor) Data() []float64 {
	return slices.Clone(t.data)
}

func (t *Tensor) offset(vals []int) int {
	if len(vals) != len(t.inds) {
		panic(fmt.Sprintf("%v %v", vals, t.inds))
	}
	off := 0
	for k, v := range vals {
		d := t.inds[k].dim
		if v < 0 || v >= d {
			panic(fmt.Sprintf("%v %v", vals, dims(t.inds)))
		}
		off = off*d + v
	}
	return off
}

// At returns the element at vals, given in the order of Inds.
func (t *Tensor) At(vals ...int) float64 {
	return t.data[t.offset(vals)]
}

// Set sets the element at vals.
// Tensors are treated as values by every other operation, so Set is meant for construction only.
func (t *Tensor) Set(v float64, vals ...int) {
	t.data[t.offset(vals)] = v
}

// Real returns the value of a rank 0 tensor.
func (t *Tensor) Real() float64 {
	if len(t.inds) != 0 {
		panic(fmt.Sprintf("%v", t.inds))
	}
	return t.data[0]
}

// Copy returns a deep copy of t.
func (t *Tensor) Copy() *Tensor {
	return &Tensor{inds: slices.Clone(t.inds), data: slices.Clone(t.data)}
}

// Norm returns the Frobenius norm.
func (t *Tensor) Norm() float64 {
	return floats.Norm(t.data, 2)
}

// Scale returns c*t.
func (t *Tensor) Scale(c float64) *Tensor {
	s := t.Copy()
	floats.Scale(c, s.data)
	return s
}

// IsZero reports whether every element of t is zero.
func (t *Tensor) IsZero() bool {
	for _, v := range t.data {
		if v != 0 {
			return false
		}
	}
	return true
}

// MapInds returns a copy of t with every index replaced by f(index).
func (t *Tensor) MapInds(f func(Index) Index) *Tensor {
	s := t.Copy()
	for k, i := range s.inds {
		j := f(i)
		if j.dim != i.dim {
			panic(fmt.Sprintf("%v %v", i, j))
		}
		s.inds[k] = j
	}
	checkDistinct(s.inds)
	return s
}

// Prime raises the prime level of the indices of kind k by inc.
func (t *Tensor) Prime(k Kind, inc int) *Tensor {
	return t.MapInds(func(i Index) Index {
		if i.kind != k {
			return i
		}
		return i.Primed(inc)
	})
}

// PrimeAll raises the prime level of every index by inc.
func (t *Tensor) PrimeAll(inc int) *Tensor {
	return t.MapInds(func(i Index) Index { return i.Primed(inc) })
}

// MapPrime moves the indices of kind k at prime level from to level to.
func (t *Tensor) MapPrime(k Kind, from, to int) *Tensor {
	return t.MapInds(func(i Index) Index {
		if i.kind != k || i.prime != from {
			return i
		}
		return i.WithPrime(to)
	})
}

// ConjKind toggles the conjugate marker of the indices of kind k.
func (t *Tensor) ConjKind(k Kind) *Tensor {
	return t.MapInds(func(i Index) Index {
		if i.kind != k {
			return i
		}
		return i.Conj()
	})
}

// ConjAll toggles the conjugate marker of every index.
func (t *Tensor) ConjAll() *Tensor {
	return t.MapInds(func(i Index) Index { return i.Conj() })
}

// Plain resets every index to prime level 0 without the conjugate marker.
func (t *Tensor) Plain() *Tensor {
	return t.MapInds(func(i Index) Index { return i.Plain() })
}

// Replace returns t with index old replaced by nu.
func (t *Tensor) Replace(old, nu Index) *Tensor {
	return t.MapInds(func(i Index) Index {
		if !i.Same(old) {
			return i
		}
		return nu
	})
}

// Permute returns t with its data reordered to follow inds, which must be a permutation of the indices of t.
func (t *Tensor) Permute(inds ...Index) *Tensor {
	if len(inds) != len(t.inds) {
		panic(fmt.Sprintf("%v %v", inds, t.inds))
	}
	perm := make([]int, len(inds))
	for k, i := range inds {
		p := indexOf(t.inds, i)
		if p < 0 {
			panic(fmt.Sprintf("%v not in %v", i, t.inds))
		}
		perm[k] = p
	}
	return &Tensor{inds: slices.Clone(inds), data: permute(t.data, dims(t.inds), perm)}
}

// permute transposes row-major data of shape dims so that axis k of the result is axis perm[k] of the input.
func permute(data []float64, shape []int, perm []int) []float64 {
	identity := true
	for k, p := range perm {
		if k != p {
			identity = false
			break
		}
	}
	if identity {
		return slices.Clone(data)
	}

	n := len(shape)
	strides := make([]int, n)
	stride := 1
	for k := n - 1; k >= 0; k-- {
		strides[k] = stride
		stride *= shape[k]
	}
	// pStrides[k] is the input stride of output axis k.
	pShape := make([]int, n)
	pStrides := make([]int, n)
	for k, p := range perm {
		pShape[k] = shape[p]
		pStrides[k] = strides[p]
	}

	out := make([]float64, len(data))
	digits := make([]int, n)
	src := 0
	for dst := range out {
		out[dst] = data[src]
		for k := n - 1; k >= 0; k-- {
			digits[k]++
			src += pStrides[k]
			if digits[k] < pShape[k] {
				break
			}
			src -= digits[k] * pStrides[k]
			digits[k] = 0
		}
	}
	return out
}

// Add returns a*x + b*y, where x and y must carry the same set of indices.
// The result follows the index order of x.
func Add(a float64, x *Tensor, b float64, y *Tensor) (*Tensor, error) {
	if len(x.inds) != len(y.inds) || len(Common(x.inds, y.inds)) != len(x.inds) {
		return nil, errors.Wrapf(ErrIndexMismatch, "%v %v", x.inds, y.inds)
	}
	yp := y.Permute(x.inds...)
	z := x.Scale(a)
	floats.AddScaled(z.data, b, yp.data)
	return z, nil
}

// Contract contracts every index shared by a and b.
// The result carries the remaining indices of a followed by those of b.
func Contract(a, b *Tensor) *Tensor {
	var aCommon, bCommon, aFree, bFree []Index
	for _, i := range a.inds {
		p := indexOf(b.inds, i)
		if p < 0 {
			aFree = append(aFree, i)
			continue
		}
		if b.inds[p].dim != i.dim {
			panic(fmt.Sprintf("%v %v", i, b.inds[p]))
		}
		aCommon = append(aCommon, i)
		bCommon = append(bCommon, b.inds[p])
	}
	for _, i := range b.inds {
		if indexOf(a.inds, i) < 0 {
			bFree = append(bFree, i)
		}
	}

	m, k, n := size(aFree), size(aCommon), size(bFree)
	ap := a.Permute(append(slices.Clone(aFree), aCommon...)...)
	bp := b.Permute(append(slices.Clone(bCommon), bFree...)...)

	am := mat.NewDense(m, k, ap.data)
	bm := mat.NewDense(k, n, bp.data)
	c := mat.NewDense(m, n, nil)
	c.Mul(am, bm)

	inds := append(aFree, bFree...)
	return &Tensor{inds: inds, data: c.RawMatrix().Data}
}

// ContractAll contracts ts from left to right, skipping nil tensors.
func ContractAll(ts ...*Tensor) *Tensor {
	var c *Tensor
	for _, t := range ts {
		if t == nil {
			continue
		}
		if c == nil {
			c = t
			continue
		}
		c = Contract(c, t)
	}
	return c
}

// Dist returns the Frobenius distance between x and y.
func Dist(x, y *Tensor) (float64, error) {
	d, err := Add(1, x, -1, y)
	if err != nil {
		return math.NaN(), errors.Wrap(err, "")
	}
	return d.Norm(), nil
}

// matrix returns t as a rows x cols matrix, with rows spanning the indices in left.
func (t *Tensor) matrix(left []Index) (*mat.Dense, []Index) {
	right := Without(t.inds, left...)
	if len(left)+len(right) != len(t.inds) {
		panic(fmt.Sprintf("%v %v", left, t.inds))
	}
	p := t.Permute(append(slices.Clone(left), right...)...)
	return mat.NewDense(size(left), size(right), p.data), right
}

func (t *Tensor) String() string {
	if t == nil {
		return "<nil>"
	}
	ss := make([]string, 0, len(t.inds))
	for _, i := range t.inds {
		ss = append(ss, i.String())
	}
	return fmt.Sprintf("[%s]%v", strings.Join(ss, ","), t.data)
}
