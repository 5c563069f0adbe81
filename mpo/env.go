package mpo

import (
	"fmt"

	"github.com/fumin/mpoalgs/mps"
	"github.com/fumin/mpoalgs/tn"
)

// env caches the partial contractions of <res|op|ket>, where op may be nil.
// lefts[k] spans sites 1..k and rights[k] spans sites k..N, a nil entry is absent.
// Entries 0 and N+1 stay absent and stand for the empty contraction.
type env struct {
	ket *mps.MPS
	op  *mps.MPO
	res *mps.MPS

	lefts  []*tn.Tensor
	rights []*tn.Tensor
}

func newEnv(ket *mps.MPS, op *mps.MPO, res *mps.MPS) *env {
	n := ket.N()
	return &env{ket: ket, op: op, res: res, lefts: make([]*tn.Tensor, n+2), rights: make([]*tn.Tensor, n+2)}
}

// bra returns the site tensor of the result as it enters the contraction.
// Its bond indices carry the conjugate marker so that they never meet the bonds of ket,
// which the result may share when it was copied from ket.
func (e *env) bra(i int) *tn.Tensor {
	t := e.res.A(i).ConjKind(tn.Link)
	if e.op != nil {
		t = t.Prime(tn.Site, 1)
	}
	return t
}

func (e *env) opA(i int) *tn.Tensor {
	if e.op == nil {
		return nil
	}
	return e.op.A(i)
}

func (e *env) reset() {
	clear(e.lefts)
	clear(e.rights)
}

// buildFromRight fills rights[N..3], which the first forward half-sweep reads.
func (e *env) buildFromRight() {
	e.reset()
	n := e.ket.N()
	for k := n; k >= 3; k-- {
		e.rights[k] = tn.ContractAll(e.rights[k+1], e.ket.A(k), e.opA(k), e.bra(k))
	}
}

// buildFromLeft fills lefts[1..N-2], which the first backward half-sweep reads.
func (e *env) buildFromLeft() {
	e.reset()
	n := e.ket.N()
	for k := 1; k <= n-2; k++ {
		e.lefts[k] = tn.ContractAll(e.lefts[k-1], e.ket.A(k), e.opA(k), e.bra(k))
	}
}

func (e *env) left(k int) *tn.Tensor {
	if k == 0 {
		return nil
	}
	if e.lefts[k] == nil {
		panic(fmt.Sprintf("left %d", k))
	}
	return e.lefts[k]
}

func (e *env) right(k int) *tn.Tensor {
	if k == e.ket.N()+1 {
		return nil
	}
	if e.rights[k] == nil {
		panic(fmt.Sprintf("right %d", k))
	}
	return e.rights[k]
}

// leftBlock returns the contraction of lefts[b-1] with the ket and operator tensors of site b.
func (e *env) leftBlock(b int) *tn.Tensor {
	return tn.ContractAll(e.left(b-1), e.ket.A(b), e.opA(b))
}

// rightBlock returns the contraction of rights[b+2] with the ket and operator tensors of site b+1.
func (e *env) rightBlock(b int) *tn.Tensor {
	return tn.ContractAll(e.right(b+2), e.ket.A(b+1), e.opA(b+1))
}

// target returns the projection of op|ket> onto the bonds of res around sites b and b+1, with plain indices.
func (e *env) target(b int) (lw, rw, phi *tn.Tensor) {
	lw, rw = e.leftBlock(b), e.rightBlock(b)
	return lw, rw, tn.Contract(lw, rw).Plain()
}

// advance extends the cache past bond b after the result tensors at b and b+1 were replaced.
// block is the leftBlock of b when moving forward and the rightBlock of b when moving backward.
func (e *env) advance(b int, h half, block *tn.Tensor) {
	switch h {
	case forward:
		e.lefts[b] = tn.Contract(block, e.bra(b))
		for k := 1; k <= b+1; k++ {
			e.rights[k] = nil
		}
	default:
		e.rights[b+1] = tn.Contract(block, e.bra(b+1))
		for k := b; k <= e.ket.N(); k++ {
			e.lefts[k] = nil
		}
	}
}

// overlap returns <res|op|ket> after a half-sweep that ended with the given direction.
func (e *env) overlap(h half) float64 {
	n := e.ket.N()
	if h == backward {
		return tn.ContractAll(e.right(2), e.ket.A(1), e.opA(1), e.bra(1)).Real()
	}
	return tn.ContractAll(e.left(n-1), e.ket.A(n), e.opA(n), e.bra(n)).Real()
}
