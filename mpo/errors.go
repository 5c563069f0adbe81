package mpo

import (
	"github.com/pkg/errors"

	"github.com/fumin/mpoalgs/mps"
	"github.com/fumin/mpoalgs/tn"
)

var (
	ErrLengthMismatch    = errors.New("chains have different lengths")
	ErrUninitialized     = errors.New("chain is uninitialized")
	ErrIncompatibleSites = errors.New("chains have different site indices")
	ErrAliased           = errors.New("result chain is also an input")
	ErrOrthoCenter       = errors.New("orthogonality center is not site 1")
	ErrUnknownMethod     = errors.New("unknown method, supported methods are DensityMatrix and Fit")
	ErrGuessUnsupported  = errors.New("method DensityMatrix does not accept a guess")
)

type chain interface {
	N() int
	Initialized() bool
}

func isNil(c chain) bool {
	switch v := c.(type) {
	case nil:
		return true
	case *mps.MPS:
		return v == nil
	case *mps.MPO:
		return v == nil
	}
	return false
}

func checkInitialized(name string, cs ...chain) error {
	for _, c := range cs {
		if isNil(c) || !c.Initialized() {
			return errors.Wrap(ErrUninitialized, name)
		}
	}
	return nil
}

// checkNotNil allows uninitialized chains, which some algorithms fill in.
func checkNotNil(name string, c chain) error {
	if isNil(c) {
		return errors.Wrap(ErrUninitialized, name)
	}
	return nil
}

func checkLengths(cs ...chain) error {
	for _, c := range cs[1:] {
		if c.N() != cs[0].N() {
			return errors.Wrapf(ErrLengthMismatch, "%d %d", cs[0].N(), c.N())
		}
	}
	return nil
}

// stateSite returns the single physical index of site i of a state.
func stateSite(psi *mps.MPS, i int) (tn.Index, bool) {
	s := psi.SiteInds(i)
	if len(s) != 1 {
		return tn.Index{}, false
	}
	return s[0], true
}

// operatorSite returns the input index of site i of an operator, provided its output index sits at prime level 1.
func operatorSite(k *mps.MPO, i int) (tn.Index, bool) {
	s := k.SiteInds(i)
	if len(s) != 2 {
		return tn.Index{}, false
	}
	for _, in := range s {
		if in.Prime() == 0 && tn.Contains(s, in.Primed(1)) {
			return in, true
		}
	}
	return tn.Index{}, false
}

// checkSites returns an error unless the operator acts on the physical index of the state at every site.
func checkSites(k *mps.MPO, psi *mps.MPS) error {
	for i := 1; i <= psi.N(); i++ {
		s, ok := stateSite(psi, i)
		in, kok := operatorSite(k, i)
		if !ok || !kok || !in.Same(s) {
			return errors.Wrapf(ErrIncompatibleSites, "site %d: %v %v", i, k.SiteInds(i), psi.SiteInds(i))
		}
	}
	return nil
}

// checkStateSites returns an error unless the states share their physical indices at every site.
func checkStateSites(a, b *mps.MPS) error {
	for i := 1; i <= a.N(); i++ {
		x, ok := stateSite(a, i)
		y, bok := stateSite(b, i)
		if !ok || !bok || !x.Same(y) {
			return errors.Wrapf(ErrIncompatibleSites, "site %d: %v %v", i, a.SiteInds(i), b.SiteInds(i))
		}
	}
	return nil
}

// checkOperatorSites returns an error unless the operators act on the same physical indices at every site.
func checkOperatorSites(a, b *mps.MPO) error {
	for i := 1; i <= a.N(); i++ {
		x, ok := operatorSite(a, i)
		y, bok := operatorSite(b, i)
		if !ok || !bok || !x.Same(y) {
			return errors.Wrapf(ErrIncompatibleSites, "site %d: %v %v", i, a.SiteInds(i), b.SiteInds(i))
		}
	}
	return nil
}
