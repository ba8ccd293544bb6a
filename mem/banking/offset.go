package banking

import (
	"fmt"
	"math"

	"github.com/shuttlelab/shuttle/ir"
)

// periodInf marks a dimension whose address never changes the bank, which
// happens when its alpha coefficient is zero.
const periodInf = math.MaxInt

// BankOffset returns the within-bank offset of the address vector in a
// memory with the given dimension sizes. Together with the bank index the
// offset locates the address uniquely in physical storage.
//
// Only the two shapes accepted by checkShape are computable. A flat scheme
// must govern every dimension. Any other grouping is refused.
func (m Memory) BankOffset(addr, dims []int) (int, error) {
	if len(addr) != len(dims) {
		return 0, &ir.InvariantError{
			Sym: ir.None,
			Detail: fmt.Sprintf(
				"address rank %d does not match dimension rank %d",
				len(addr), len(dims)),
		}
	}

	if err := m.checkShape(len(addr)); err != nil {
		return 0, err
	}

	if len(m.Banking) == 1 {
		return flatBankOffset(m.Banking[0], addr, dims)
	}

	ordered, err := perDimSchemes(m.Banking, len(addr))
	if err != nil {
		return 0, err
	}

	return perDimBankOffset(ordered, addr, dims), nil
}

// flatBankOffset computes the offset under a single scheme that banks the
// whole address space at once.
//
// Along each dimension the bank pattern repeats with period
// P_i = N*B / gcd(N*B, alpha_i). The address space therefore tiles into
// blocks of shape P_0 x ... x P_D-1, and within one tile each bank owns
// exactly B^D cells. The offset is the tile number, in row major order over
// the tile grid, with the base-B digits of the address appended to tell the
// cells of one tile and bank apart.
//
// When one dimension's period alone covers every bank, that dimension fully
// determines the bank and the others must not contribute, otherwise cells
// that share a bank would also share a tile number. Their periods collapse
// to 1.
func flatBankOffset(bk Banking, addr, dims []int) (int, error) {
	alpha := bk.Alphas()
	if len(alpha) != len(addr) {
		return 0, &ir.UnsupportedError{
			Detail: fmt.Sprintf(
				"flat banking over %d of %d dimensions",
				len(alpha), len(addr)),
		}
	}

	n := bk.NumBanks()
	b := bk.Stride()
	nb := n * b

	periods := make([]int, len(addr))
	for i, a := range alpha {
		if a == 0 {
			periods[i] = periodInf
			continue
		}

		periods[i] = nb / gcd(nb, abs(a))
	}

	for i, p := range periods {
		if p != nb {
			continue
		}

		for j := range periods {
			if j != i {
				periods[j] = 1
			}
		}

		break
	}

	tile := 0
	for t := range addr {
		tile = tile*tilesIn(dims[t], periods[t]) + tileIndex(addr[t], periods[t])
	}

	intra := 0
	blockVolume := 1

	for t := range addr {
		intra = intra*b + addr[t]%b
		blockVolume *= b
	}

	return tile*blockVolume + intra, nil
}

// perDimBankOffset computes the offset when every dimension is banked
// independently. Each dimension contributes
//
//	floor(addr_t / (B_t * N_t)) * B_t + addr_t mod B_t
//
// which is the address with the bank bits cut out, and the contributions are
// flattened with radix ceil(dimSize_t / N_t) per dimension.
func perDimBankOffset(schemes []Banking, addr, dims []int) int {
	offset := 0

	for t, bk := range schemes {
		n := bk.NumBanks()
		b := bk.Stride()

		dimOfs := addr[t]/(b*n)*b + addr[t]%b

		offset = offset*ceilDiv(dims[t], n) + dimOfs
	}

	return offset
}

// perDimSchemes orders one-dimensional schemes by the dimension each
// governs.
func perDimSchemes(banking []Banking, rank int) ([]Banking, error) {
	ordered := make([]Banking, rank)

	for _, bk := range banking {
		axes := bk.AxisDims()
		if len(axes) != 1 {
			return nil, &ir.UnsupportedError{
				Detail: fmt.Sprintf(
					"per-dimension banking scheme governs %d dimensions",
					len(axes)),
			}
		}

		d := axes[0]
		if d < 0 || d >= rank {
			return nil, &ir.UnsupportedError{
				Detail: fmt.Sprintf(
					"banking scheme governs dimension %d of rank %d",
					d, rank),
			}
		}

		if ordered[d] != nil {
			return nil, &ir.UnsupportedError{
				Detail: fmt.Sprintf(
					"dimension %d governed by two banking schemes", d),
			}
		}

		ordered[d] = bk
	}

	return ordered, nil
}

func tileIndex(addr, period int) int {
	if period == periodInf {
		return 0
	}

	return addr / period
}

func tilesIn(dimSize, period int) int {
	if period == periodInf {
		return 1
	}

	return ceilDiv(dimSize, period)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}

func abs(a int) int {
	if a < 0 {
		return -a
	}

	return a
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}

func floorMod(a, b int) int {
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}

	return r
}
