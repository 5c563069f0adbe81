// Package mpo applies matrix product operators to matrix product states and multiplies matrix product operators,
// keeping bond dimensions bounded by truncated decompositions.
//
// References:
//   - The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
//   - Minimally entangled typical thermal state algorithms, E.M. Stoudenmire and S.R. White
package mpo

import (
	"github.com/pkg/errors"

	"github.com/fumin/mpoalgs/mps"
)

// Apply returns K|psi>.
// Method defaults to DensityMatrix and Normalize defaults to false.
func Apply(k *mps.MPO, psi *mps.MPS, args Args) (*mps.MPS, error) {
	if err := checkInitialized("psi", psi); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := checkInitialized("K", k); err != nil {
		return nil, errors.Wrap(err, "")
	}
	args = args.Normalize(get(args.normalize, false))

	switch m := get(args.method, MethodDensityMatrix); m {
	case MethodDensityMatrix:
		res, err := ExactApply(k, psi, args)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return res, nil
	case MethodFit:
		res := psi.Copy()
		if err := FitApply(1, psi, k, res, args); err != nil {
			return nil, errors.Wrap(err, "")
		}
		return res, nil
	default:
		return nil, errors.Wrapf(ErrUnknownMethod, "%q", m)
	}
}

// ApplyGuess returns K|psi>, fitted starting from guess, which is left unchanged.
// Method defaults to Fit, DensityMatrix is rejected. Normalize defaults to false.
func ApplyGuess(k *mps.MPO, psi, guess *mps.MPS, args Args) (*mps.MPS, error) {
	if err := checkInitialized("psi", psi); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := checkInitialized("K", k); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := checkInitialized("guess", guess); err != nil {
		return nil, errors.Wrap(err, "")
	}
	args = args.Normalize(get(args.normalize, false))

	switch m := get(args.method, MethodFit); m {
	case MethodDensityMatrix:
		return nil, errors.WithStack(ErrGuessUnsupported)
	case MethodFit:
		res := guess.Copy()
		if err := FitApply(1, psi, k, res, args); err != nil {
			return nil, errors.Wrap(err, "")
		}
		return res, nil
	default:
		return nil, errors.Wrapf(ErrUnknownMethod, "%q", m)
	}
}
