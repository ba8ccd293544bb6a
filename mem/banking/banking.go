// Package banking describes how a logical memory's address space is cut into
// physical banks, and computes the bank and the within-bank offset of every
// address under a chosen scheme.
package banking

import (
	"fmt"
	"log"
)

// A Banking maps address vectors to bank indices over the dimensions it
// governs. The set of implementations is closed. The offset calculation only
// understands flat and per-dimension schemes built from ModBanking.
type Banking interface {
	// NumBanks returns the bank count N of this scheme.
	NumBanks() int

	// Stride returns the block size B. Consecutive addresses along the
	// banked direction share a bank in runs of B.
	Stride() int

	// Alphas returns the per-dimension address coefficients.
	Alphas() []int

	// AxisDims returns the logical dimension indices this scheme governs,
	// in the order Alphas and address vectors are laid out.
	AxisDims() []int

	// BankSelect returns the bank of the given address vector. The vector
	// must cover exactly the dimensions in AxisDims, in order.
	BankSelect(addr []int) int

	isBanking()
}

// ModBanking banks addresses by a modular affine rule:
//
//	bank = floor((alpha . addr) / B) mod N
//
// With B = 1 the scheme is cyclic. With B > 1 it is block cyclic, keeping
// runs of B consecutive addresses in one bank.
type ModBanking struct {
	N     int
	B     int
	Alpha []int
	Dims  []int
}

// NewModBanking builds a modular banking scheme over the given dimensions.
// The alpha and dims slices must pair up one to one.
func NewModBanking(n, b int, alpha, dims []int) ModBanking {
	if n < 1 {
		log.Panicf("banking: bank count must be positive, got %d", n)
	}

	if b < 1 {
		log.Panicf("banking: block size must be positive, got %d", b)
	}

	if len(alpha) != len(dims) {
		log.Panicf(
			"banking: %d alphas cannot govern %d dimensions",
			len(alpha), len(dims))
	}

	return ModBanking{N: n, B: b, Alpha: alpha, Dims: dims}
}

// NumBanks returns N.
func (m ModBanking) NumBanks() int {
	return m.N
}

// Stride returns the block size B.
func (m ModBanking) Stride() int {
	return m.B
}

// Alphas returns the address coefficients.
func (m ModBanking) Alphas() []int {
	return m.Alpha
}

// AxisDims returns the governed dimension indices.
func (m ModBanking) AxisDims() []int {
	return m.Dims
}

// BankSelect returns floor((alpha . addr) / B) mod N. The result is always
// in [0, N) even for negative coefficient sums.
func (m ModBanking) BankSelect(addr []int) int {
	if len(addr) != len(m.Alpha) {
		log.Panicf(
			"banking: address rank %d does not match alpha rank %d",
			len(addr), len(m.Alpha))
	}

	sum := 0
	for i, a := range m.Alpha {
		sum += a * addr[i]
	}

	return floorMod(floorDiv(sum, m.B), m.N)
}

func (m ModBanking) isBanking() {}

func (m ModBanking) String() string {
	return fmt.Sprintf(
		"mod(N=%d, B=%d, alpha=%v, dims=%v)", m.N, m.B, m.Alpha, m.Dims)
}

// UnitBanking returns the degenerate scheme of the given rank: one bank, no
// blocking, every dimension with coefficient one.
func UnitBanking(rank int) Banking {
	alpha := make([]int, rank)
	dims := make([]int, rank)

	for i := range alpha {
		alpha[i] = 1
		dims[i] = i
	}

	return NewModBanking(1, 1, alpha, dims)
}
