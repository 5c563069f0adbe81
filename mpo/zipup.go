package mpo

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/fumin/mpoalgs/mps"
	"github.com/fumin/mpoalgs/tn"
)

// ZipUpApply returns K|psi> from a single left to right pass, without the environments of ExactApply.
// The truncation at each bond only sees the sites to its left, so the result is in general less accurate than ExactApply
// at the same cutoff. psi must have its orthogonality center at site 1, and so must K unless AllowArbPosition is set.
func ZipUpApply(k *mps.MPO, psi *mps.MPS, args Args) (*mps.MPS, error) {
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
	if psi.OrthoCenter() != 1 {
		return nil, errors.Wrapf(ErrOrthoCenter, "psi %d %d", psi.LeftLim(), psi.RightLim())
	}
	if !args.allowArbPosition && k.OrthoCenter() != 1 {
		return nil, errors.Wrapf(ErrOrthoCenter, "K %d %d", k.LeftLim(), k.RightLim())
	}
	n := psi.N()
	tr := args.trunc(defaultExactCutoff)

	sites := make([]*tn.Tensor, n)
	if n == 1 {
		sites[0] = tn.Contract(psi.A(1), k.A(1)).MapPrime(tn.Site, 1, 0)
		res := mps.NewMPS(sites)
		res.SetLims(0, 2)
		return res, nil
	}

	clust := tn.Contract(psi.A(1), k.A(1))
	for i := 1; i < n-1; i++ {
		left := tn.Without(clust.Inds(), psi.LinkInd(i), k.LinkInd(i))
		tri := tr
		tri.Tag = fmt.Sprintf("l=%d", i)
		site, carry, spec, err := tn.SVD(clust, left, tn.Fromleft, tri)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("site %d", i))
		}
		args.report(Event{Algorithm: AlgorithmZipUp, Bond: i, Spectrum: spec})
		sites[i-1] = site
		clust = tn.ContractAll(carry, psi.A(i+1), k.A(i+1))
	}
	left := tn.Without(clust.Inds(), psi.LinkInd(n-1), k.LinkInd(n-1))
	phi := tn.ContractAll(clust, psi.A(n), k.A(n))
	tr.Tag = fmt.Sprintf("l=%d", n-1)
	x, y, spec, err := tn.SVD(phi, left, tn.Fromright, tr)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("site %d", n-1))
	}
	args.report(Event{Algorithm: AlgorithmZipUp, Bond: n - 1, Spectrum: spec})
	sites[n-2], sites[n-1] = x, y

	for i, s := range sites {
		sites[i] = s.MapPrime(tn.Site, 1, 0)
	}
	res := mps.NewMPS(sites)
	res.SetLims(n-2, n)
	if err := res.Position(1); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return res, nil
}
