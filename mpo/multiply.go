package mpo

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/fumin/mpoalgs/mps"
	"github.com/fumin/mpoalgs/tn"
)

// Multiply returns the operator A*B, where B acts first.
// Cutoff defaults to 1e-14.
func Multiply(a, b *mps.MPO, args Args) (*mps.MPO, error) {
	if err := checkInitialized("A", a); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := checkInitialized("B", b); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := checkLengths(a, b); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := checkOperatorSites(a, b); err != nil {
		return nil, errors.Wrap(err, "")
	}
	n := a.N()
	tr := args.trunc(defaultMultiplyCutoff)

	ac := a.Copy()
	if err := ac.Position(1); err != nil {
		return nil, errors.Wrap(err, "")
	}
	var bc *mps.MPO
	if a.ID() == b.ID() {
		bc = ac.Copy()
	} else {
		bc = b.Copy()
		if err := bc.Position(1); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	// The input of A meets the output of B at prime level 1, the output of A moves to level 2.
	ac.MapSites(func(t *tn.Tensor) *tn.Tensor { return t.PrimeAll(1) })

	sites := make([]*tn.Tensor, n)
	if n == 1 {
		sites[0] = tn.Contract(ac.A(1), bc.A(1)).MapPrime(tn.Site, 2, 1)
		return mps.NewMPO(sites), nil
	}

	clust := tn.Contract(ac.A(1), bc.A(1))
	for i := 1; i < n-1; i++ {
		left := tn.Without(clust.Inds(), ac.LinkInd(i), bc.LinkInd(i))
		tri := tr
		tri.Tag = fmt.Sprintf("l=%d", i)
		site, carry, spec, err := tn.SVD(clust, left, tn.Fromleft, tri)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("site %d", i))
		}
		args.report(Event{Algorithm: AlgorithmMultiply, Bond: i, Spectrum: spec})
		sites[i-1] = site
		clust = tn.ContractAll(carry, ac.A(i+1), bc.A(i+1))
	}
	left := tn.Without(clust.Inds(), ac.LinkInd(n-1), bc.LinkInd(n-1))
	phi := tn.ContractAll(clust, ac.A(n), bc.A(n))
	tr.Tag = fmt.Sprintf("l=%d", n-1)
	x, y, spec, err := tn.SVD(phi, left, tn.Fromright, tr)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("site %d", n-1))
	}
	args.report(Event{Algorithm: AlgorithmMultiply, Bond: n - 1, Spectrum: spec})
	sites[n-2], sites[n-1] = x, y

	for i, s := range sites {
		sites[i] = s.MapPrime(tn.Site, 2, 1)
	}
	res := mps.NewMPO(sites)
	res.SetLims(n-2, n)
	tr.Tag = ""
	if err := res.Orthogonalize(tr); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return res, nil
}
