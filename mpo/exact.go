package mpo

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/fumin/mpoalgs/mps"
	"github.com/fumin/mpoalgs/tn"
)

// conjSite returns the copy of t that closes the bra side of a density matrix:
// physical indices move from prime level 0 to 2 and bond indices carry the conjugate marker.
func conjSite(t *tn.Tensor) *tn.Tensor {
	return t.MapPrime(tn.Site, 0, 2).ConjKind(tn.Link)
}

// ExactApply returns K|psi> computed from reduced density matrices, exact up to the truncation.
// Cutoff defaults to 1e-13. When MaxDim is unset, the bond dimension at each cut is bounded by
// the product of the bond dimensions of psi and K there.
func ExactApply(k *mps.MPO, psi *mps.MPS, args Args) (*mps.MPS, error) {
	if err := checkInitialized("psi", psi); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := checkInitialized("K", k); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := checkLengths(psi, k); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := checkSites(k, psi); err != nil {
		return nil, errors.Wrap(err, "")
	}
	n := psi.N()
	normalize := get(args.normalize, false)
	tr := args.trunc(defaultExactCutoff)

	// kpsi returns the product of the tensors of psi and K at site j, with plain physical indices.
	kpsi := func(o *tn.Tensor, j int) *tn.Tensor {
		return tn.ContractAll(o, psi.A(j), k.A(j)).MapPrime(tn.Site, 1, 0)
	}

	sites := make([]*tn.Tensor, n)
	if n == 1 {
		o := kpsi(nil, 1)
		if normalize {
			if err := normalizeTensor(&o); err != nil {
				return nil, errors.Wrap(err, "")
			}
		}
		sites[0] = o
		res := mps.NewMPS(sites)
		res.SetLims(0, 2)
		return res, nil
	}

	// es[j] is the density matrix of K|psi> with sites 1..j traced out, 1 <= j <= N-1.
	es := make([]*tn.Tensor, n)
	for j := 1; j < n; j++ {
		es[j] = tn.ContractAll(es[j-1], psi.A(j), k.A(j), conjSite(k.A(j)), conjSite(psi.A(j)))
	}

	o := kpsi(nil, n)
	for j := n; j > 1; j-- {
		e := es[j-1]
		rows := tn.Without(o.Inds(), e.Inds()...)
		rho := tn.ContractAll(e, o, o.ConjAll())

		trj := tr
		trj.Tag = fmt.Sprintf("l=%d", j-1)
		if args.maxDim == nil && j < n {
			trj.MaxDim = linkDim(psi.LinkInd(j-1)) * linkDim(k.LinkInd(j-1))
		}
		u, spec, err := tn.DiagSym(rho, rows, trj)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("site %d", j))
		}
		args.report(Event{Algorithm: AlgorithmExact, Bond: j - 1, Spectrum: spec})
		sites[j-1] = u
		o = kpsi(tn.Contract(o, u), j-1)
	}

	if normalize {
		if err := normalizeTensor(&o); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	sites[0] = o
	res := mps.NewMPS(sites)
	res.SetLims(0, 2)
	return res, nil
}

func linkDim(l tn.Index) int {
	if l.IsZero() {
		return 1
	}
	return l.Dim()
}

func normalizeTensor(t **tn.Tensor) error {
	norm := (*t).Norm()
	if norm == 0 {
		return errors.WithStack(tn.ErrZeroTensor)
	}
	*t = (*t).Scale(1 / norm)
	return nil
}
