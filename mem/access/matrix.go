// Package access models the concrete unrolled accesses that the banking
// analysis schedules. Each access carries the affine matrix of its address
// function, its unroll identity, and the control scope it executes in.
package access

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"
)

// A Matrix is the affine address function of one access. It has one row per
// memory dimension and one column per loop iterator, plus a trailing column
// for the constant term, so that addr = A * iters + c.
//
// The zero Matrix stands for an address function the upstream pattern
// analysis could not express. It evaluates nothing and compares unequal to
// every matrix, including itself.
type Matrix struct {
	data *mat.Dense
}

// MakeMatrix builds an address matrix from integer rows. Every row must have
// the same length and carry at least the constant column.
func MakeMatrix(rows [][]int) Matrix {
	if len(rows) == 0 {
		log.Panicf("access: address matrix must have at least one row")
	}

	cols := len(rows[0])
	if cols < 1 {
		log.Panicf("access: address matrix rows must carry a constant column")
	}

	flat := make([]float64, 0, len(rows)*cols)

	for _, row := range rows {
		if len(row) != cols {
			log.Panicf(
				"access: ragged address matrix, row of %d then row of %d",
				cols, len(row))
		}

		for _, v := range row {
			flat = append(flat, float64(v))
		}
	}

	return Matrix{data: mat.NewDense(len(rows), cols, flat)}
}

// Known reports whether the matrix carries an actual address function.
func (m Matrix) Known() bool {
	return m.data != nil
}

// Rank returns the number of memory dimensions the matrix addresses.
func (m Matrix) Rank() int {
	if m.data == nil {
		return 0
	}

	r, _ := m.data.Dims()

	return r
}

// Iterators returns the number of loop iterators the matrix reads.
func (m Matrix) Iterators() int {
	if m.data == nil {
		return 0
	}

	_, c := m.data.Dims()

	return c - 1
}

// Evaluate applies the address function to one iteration point.
func (m Matrix) Evaluate(iters []int) []int {
	if m.data == nil {
		log.Panicf("access: cannot evaluate an unknown address matrix")
	}

	rows, cols := m.data.Dims()
	if len(iters) != cols-1 {
		log.Panicf(
			"access: address matrix over %d iterators evaluated at %d",
			cols-1, len(iters))
	}

	point := make([]float64, cols)
	for i, it := range iters {
		point[i] = float64(it)
	}
	point[cols-1] = 1

	var addr mat.VecDense
	addr.MulVec(m.data, mat.NewVecDense(cols, point))

	out := make([]int, rows)
	for i := range out {
		out[i] = int(addr.AtVec(i))
	}

	return out
}

// Equal reports whether two known matrices describe the same address
// function. Unknown matrices never compare equal.
func (m Matrix) Equal(o Matrix) bool {
	if m.data == nil || o.data == nil {
		return false
	}

	return mat.Equal(m.data, o.data)
}

func (m Matrix) String() string {
	if m.data == nil {
		return "unknown"
	}

	return fmt.Sprintf("%v", mat.Formatted(m.data, mat.Squeeze()))
}
