// Package tn implements dense tensors with labeled indices, and the truncated factorizations used by tensor network algorithms.
//
// Indices carry an identity, so contraction never depends on axis positions.
// Two indices match when they share identity, prime level and conjugate marker.
package tn

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the role of an index in a chain.
type Kind uint8

const (
	// Site is a physical index.
	Site Kind = iota + 1
	// Link is a bond index between neighboring sites.
	Link
)

func (k Kind) String() string {
	switch k {
	case Site:
		return "Site"
	case Link:
		return "Link"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Index is a tensor index.
type Index struct {
	id    uuid.UUID
	dim   int
	kind  Kind
	prime int
	// conj marks the private copy of an index used on the bra side of a contraction.
	conj bool
	tag  string
}

// NewIndex returns an index with a fresh identity.
func NewIndex(dim int, kind Kind, tag string) Index {
	if dim < 1 {
		panic(fmt.Sprintf("%d", dim))
	}
	return Index{id: uuid.New(), dim: dim, kind: kind, tag: tag}
}

func (i Index) Dim() int      { return i.dim }
func (i Index) Kind() Kind    { return i.kind }
func (i Index) Prime() int    { return i.prime }
func (i Index) IsConj() bool  { return i.conj }
func (i Index) Tag() string   { return i.tag }
func (i Index) ID() uuid.UUID { return i.id }

// IsZero reports whether i is the zero value, which is used as "no index".
func (i Index) IsZero() bool { return i.dim == 0 }

// Same reports whether i and j contract with each other.
func (i Index) Same(j Index) bool {
	return i.id == j.id && i.prime == j.prime && i.conj == j.conj
}

// SameFamily reports whether i and j share identity, regardless of prime level and conjugate marker.
func (i Index) SameFamily(j Index) bool {
	return i.id == j.id
}

// Primed returns i with its prime level raised by inc.
func (i Index) Primed(inc int) Index {
	i.prime += inc
	return i
}

// WithPrime returns i at prime level p.
func (i Index) WithPrime(p int) Index {
	i.prime = p
	return i
}

// Conj returns i with its conjugate marker toggled.
func (i Index) Conj() Index {
	i.conj = !i.conj
	return i
}

// Plain returns i at prime level 0 without the conjugate marker.
func (i Index) Plain() Index {
	i.prime = 0
	i.conj = false
	return i
}

func (i Index) String() string {
	s := fmt.Sprintf("(%d|%s|%s", i.dim, i.kind, i.id.String()[:4])
	if i.tag != "" {
		s += "|" + i.tag
	}
	s += ")"
	for range i.prime {
		s += "'"
	}
	if i.conj {
		s += "*"
	}
	return s
}

func indexOf(inds []Index, j Index) int {
	for k, i := range inds {
		if i.Same(j) {
			return k
		}
	}
	return -1
}

// Common returns the indices shared by a and b, in the order of a.
func Common(a, b []Index) []Index {
	c := make([]Index, 0)
	for _, i := range a {
		if indexOf(b, i) >= 0 {
			c = append(c, i)
		}
	}
	return c
}

// Without returns the indices of a that do not appear in drop.
func Without(a []Index, drop ...Index) []Index {
	c := make([]Index, 0, len(a))
	for _, i := range a {
		if indexOf(drop, i) < 0 {
			c = append(c, i)
		}
	}
	return c
}

// OfKind returns the indices of a with kind k.
func OfKind(a []Index, k Kind) []Index {
	c := make([]Index, 0, len(a))
	for _, i := range a {
		if i.kind == k {
			c = append(c, i)
		}
	}
	return c
}

// Contains reports whether j is in a.
func Contains(a []Index, j Index) bool {
	return indexOf(a, j) >= 0
}

func dims(inds []Index) []int {
	d := make([]int, len(inds))
	for k, i := range inds {
		d[k] = i.dim
	}
	return d
}

func size(inds []Index) int {
	n := 1
	for _, i := range inds {
		n *= i.dim
	}
	return n
}
