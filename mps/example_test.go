package mps_test

import (
	"fmt"
	"log"

	"github.com/fumin/mpoalgs/mpo"
	"github.com/fumin/mpoalgs/mps"
)

func Example() {
	// Create an Ising chain of length n and transverse field strength h.
	const n = 4
	const h = 0.031623
	sites := mps.Sites(n, 2)
	hamiltonian := mps.Ising(sites, h)

	// Evolve the all up state in imaginary time.
	state := mps.ProductState(sites, []int{0, 0, 0, 0})
	fmt.Printf("Initial energy %.4f\n", mps.Expectation(state, hamiltonian, state))
	args := mpo.NewArgs().Nsweep(2).Normalize(true)
	for range 40 {
		var err error
		if state, err = mpo.ApplyExpH(state, hamiltonian, 0.1, args); err != nil {
			log.Fatalf("%+v", err)
		}
	}

	// Compute expectation values of the ground state.
	norm2 := mps.InnerProduct(state, state)                  // <state|state>
	e0 := mps.Expectation(state, hamiltonian, state) / norm2 // ground energy
	fmt.Printf("Ground energy %.4f\n", e0)

	// Output:
	// Initial energy -3.0000
	// Ground energy -3.0015
}
