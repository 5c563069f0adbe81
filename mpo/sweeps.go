package mpo

import (
	"fmt"
	"slices"

	"github.com/fumin/mpoalgs/tn"
)

const (
	defaultMultiplyCutoff = 1e-14
	defaultExactCutoff    = 1e-13
	defaultFitCutoff      = 1e-13
	defaultOrder          = 10
)

// Sweep holds the truncation parameters of one variational sweep.
type Sweep struct {
	Cutoff float64
	// MaxDim of zero means no cap.
	MaxDim int
	MinDim int
	Noise  float64
}

// Sweeps is a schedule of variational sweeps, one entry per sweep.
type Sweeps []Sweep

// NewSweeps returns n identical sweeps.
func NewSweeps(n int, s Sweep) Sweeps {
	sw := make(Sweeps, n)
	for i := range sw {
		sw[i] = s
	}
	return sw
}

func (s Sweep) trunc(b int) tn.Trunc {
	return tn.Trunc{Cutoff: s.Cutoff, MaxDim: s.MaxDim, MinDim: s.MinDim, Noise: s.Noise, Tag: fmt.Sprintf("l=%d", b)}
}

// half is the direction of a half-sweep.
type half int

const (
	forward half = iota + 1
	backward
)

func (h half) String() string {
	switch h {
	case forward:
		return "forward"
	case backward:
		return "backward"
	default:
		return fmt.Sprintf("half(%d)", int(h))
	}
}

// dir returns the orientation of the decompositions of a half-sweep.
func (h half) dir() tn.Dir {
	if h == forward {
		return tn.Fromleft
	}
	return tn.Fromright
}

// bonds returns the bonds visited by a half-sweep of an n site chain.
func (h half) bonds(n int) []int {
	bs := make([]int, 0, n-1)
	for b := 1; b < n; b++ {
		bs = append(bs, b)
	}
	if h == backward {
		slices.Reverse(bs)
	}
	return bs
}
