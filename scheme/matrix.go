package scheme

import (
	"fmt"
	"math/big"

	"github.com/sbl8/ssccs/core"
)

// ratMatrix is an exact inverse of an integer matrix.
type ratMatrix [][]*big.Rat

func checkRectangular(m [][]int64) (rows, cols int, err error) {
	if len(m) == 0 {
		return 0, 0, fmt.Errorf("%w: empty matrix", ErrInvalidTransform)
	}
	cols = len(m[0])
	for i, row := range m {
		if len(row) != cols {
			return 0, 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidTransform, i, len(row), cols)
		}
	}
	if cols == 0 {
		return 0, 0, fmt.Errorf("%w: empty matrix row", ErrInvalidTransform)
	}
	return len(m), cols, nil
}

// invert computes m^-1 by Gauss-Jordan elimination over the rationals.
func invert(m [][]int64) (ratMatrix, error) {
	rows, cols, err := checkRectangular(m)
	if err != nil {
		return nil, err
	}
	if rows != cols {
		return nil, fmt.Errorf("%w: %dx%d matrix is not square", ErrInvalidTransform, rows, cols)
	}
	n := rows
	aug := make([][]*big.Rat, n)
	for i := range aug {
		aug[i] = make([]*big.Rat, 2*n)
		for j := 0; j < n; j++ {
			aug[i][j] = new(big.Rat).SetInt64(m[i][j])
			aug[i][n+j] = new(big.Rat)
		}
		aug[i][n+i].SetInt64(1)
	}

	for col := 0; col < n; col++ {
		pivot := -1
		for r := col; r < n; r++ {
			if aug[r][col].Sign() != 0 {
				pivot = r
				break
			}
		}
		if pivot < 0 {
			return nil, fmt.Errorf("%w: singular matrix", ErrInvalidTransform)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		inv := new(big.Rat).Inv(aug[col][col])
		for j := range aug[col] {
			aug[col][j].Mul(aug[col][j], inv)
		}
		for r := 0; r < n; r++ {
			if r == col || aug[r][col].Sign() == 0 {
				continue
			}
			f := new(big.Rat).Set(aug[r][col])
			for j := range aug[r] {
				aug[r][j].Sub(aug[r][j], new(big.Rat).Mul(f, aug[col][j]))
			}
		}
	}

	out := make(ratMatrix, n)
	for i := range out {
		out[i] = aug[i][n:]
	}
	return out, nil
}

// apply returns inv·y when every component is an integer.
func (inv ratMatrix) apply(y core.Coordinate) (core.Coordinate, bool) {
	if len(y) != len(inv) {
		return nil, false
	}
	out := make(core.Coordinate, len(inv))
	acc := new(big.Rat)
	term := new(big.Rat)
	for i, row := range inv {
		acc.SetInt64(0)
		for j, v := range row {
			acc.Add(acc, term.Mul(v, new(big.Rat).SetInt64(y[j])))
		}
		if !acc.IsInt() || !acc.Num().IsInt64() {
			return nil, false
		}
		out[i] = acc.Num().Int64()
	}
	return out, true
}

// mulInt returns m·c. c must have len(m[0]) components.
func mulInt(m [][]int64, c core.Coordinate) core.Coordinate {
	out := make(core.Coordinate, len(m))
	for i, row := range m {
		var sum int64
		for j, v := range row {
			sum += v * c[j]
		}
		out[i] = sum
	}
	return out
}
