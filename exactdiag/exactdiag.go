// Package exactdiag assembles dense Hamiltonians of small spin chains.
// Site 1 is the most significant factor of every Kronecker product, which matches the ordering of a dense chain export.
package exactdiag

import (
	"math"

	"github.com/pkg/errors"
	gmat "gonum.org/v1/gonum/mat"

	"github.com/fumin/mpoalgs/exactdiag/mat"
)

var (
	identity = mat.COOIdentity(2)
)

// TransverseFieldIsing sets hamiltonian to -ΣZZ - hΣX on an n[0] by n[1] lattice with open boundaries.
func TransverseFieldIsing(hamiltonian, buf *mat.COO, n [2]int, h float64) {
	numSpins := n[0] * n[1]
	hamiltonian.Zeros(1<<numSpins, 1<<numSpins)

	for y := 0; y < n[0]; y++ {
		for x := 0; x < n[1]; x++ {
			up := y - 1
			if up >= 0 {
				coupling(hamiltonian, n, [2]int{up, x}, [2]int{y, x}, buf)
			}

			left := x - 1
			if left >= 0 {
				coupling(hamiltonian, n, [2]int{y, left}, [2]int{y, x}, buf)
			}

			magnetic(hamiltonian, n, [2]int{y, x}, mat.M(mat.PauliX), -h, buf)
		}
	}
}

// FieldSum sets m to Σ op_i on a chain of n spins.
func FieldSum(m, buf *mat.COO, n int, op [][]float64) {
	m.Zeros(1<<n, 1<<n)
	for i := range n {
		magnetic(m, [2]int{n, 1}, [2]int{i, 0}, mat.M(op), 1, buf)
	}
}

// Parity sets m to ⊗X on a chain of n spins.
func Parity(m *mat.COO, n int) {
	m.Scalar(1)
	for range n {
		m.Kron(mat.M(mat.PauliX))
	}
}

func coupling(hamiltonian *mat.COO, n [2]int, i [2]int, j [2]int, system *mat.COO) {
	system.Scalar(1)
	for y := 0; y < n[0]; y++ {
		for x := 0; x < n[1]; x++ {
			yx := [2]int{y, x}

			switch {
			case yx == i || yx == j:
				system.Kron(mat.M(mat.PauliZ))
			default:
				system.Kron(identity)
			}
		}
	}

	hamiltonian.Add(-1, system)
}

func magnetic(hamiltonian *mat.COO, n [2]int, i [2]int, op *mat.COO, c float64, system *mat.COO) {
	system.Scalar(1)
	for y := 0; y < n[0]; y++ {
		for x := 0; x < n[1]; x++ {
			yx := [2]int{y, x}
			switch {
			case yx == i:
				system.Kron(op)
			default:
				system.Kron(identity)
			}
		}
	}

	hamiltonian.Add(c, system)
}

// Exp returns exp(-tau*h) for the symmetric matrix h.
func Exp(h *mat.COO, tau float64) (*gmat.Dense, error) {
	vvs, err := h.Eigen()
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	n := h.Rows()
	e := gmat.NewDense(n, n, nil)
	for _, vv := range vvs {
		v := gmat.NewVecDense(n, vv.Vec)
		var outer gmat.Dense
		outer.Outer(math.Exp(-tau*vv.Val), v, v)
		e.Add(e, &outer)
	}
	return e, nil
}

// Apply returns m*v.
func Apply(m gmat.Matrix, v []float64) []float64 {
	r, _ := m.Dims()
	var w gmat.VecDense
	w.MulVec(m, gmat.NewVecDense(len(v), v))
	out := make([]float64, r)
	for i := range out {
		out[i] = w.AtVec(i)
	}
	return out
}
