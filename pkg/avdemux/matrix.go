package avdemux

import "fmt"

// matrix is a dense GF(256) matrix stored row-major, used to build the
// Reed-Solomon generator matrix and invert the square submatrix selected by
// whichever shards actually arrived.
type matrix [][]byte

func newMatrix(rows, cols int) matrix {
	m := make(matrix, rows)
	for i := range m {
		m[i] = make([]byte, cols)
	}
	return m
}

// identityMatrix returns the n x n identity matrix.
func identityMatrix(n int) matrix {
	m := newMatrix(n, n)
	for i := 0; i < n; i++ {
		m[i][i] = 1
	}
	return m
}

// vandermondeRow returns [1, a, a^2, ..., a^(cols-1)] for a = row+1,
// chosen nonzero and distinct across parity rows so every combination of
// dataCount surviving rows from the full generator matrix is invertible.
func vandermondeRow(row, cols int) []byte {
	a := byte(row + 1)
	out := make([]byte, cols)
	for i := 0; i < cols; i++ {
		out[i] = gfPow(a, i)
	}
	return out
}

// buildGeneratorMatrix returns a (dataCount+parityCount) x dataCount matrix
// whose first dataCount rows are the identity (data shards equal
// themselves) and whose remaining parityCount rows are Vandermonde-derived
// parity coefficients.
func buildGeneratorMatrix(dataCount, parityCount int) matrix {
	g := newMatrix(dataCount+parityCount, dataCount)
	id := identityMatrix(dataCount)
	for i := 0; i < dataCount; i++ {
		copy(g[i], id[i])
	}
	for p := 0; p < parityCount; p++ {
		copy(g[dataCount+p], vandermondeRow(p, dataCount))
	}
	return g
}

// subMatrix selects the given rows of m, preserving order.
func (m matrix) subMatrix(rows []int) matrix {
	out := make(matrix, len(rows))
	for i, r := range rows {
		out[i] = m[r]
	}
	return out
}

// invert computes the inverse of a square GF(256) matrix via Gauss-Jordan
// elimination with the augmented identity, returning an error if the matrix
// is singular (should not happen for a properly chosen Vandermonde-based
// generator, but degenerate shard selections are rejected defensively).
func (m matrix) invert() (matrix, error) {
	n := len(m)
	aug := newMatrix(n, 2*n)
	for i := 0; i < n; i++ {
		copy(aug[i][:n], m[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := -1
		for row := col; row < n; row++ {
			if aug[row][col] != 0 {
				pivot = row
				break
			}
		}
		if pivot == -1 {
			return nil, fmt.Errorf("avdemux: singular matrix, cannot invert")
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		inv := gfDiv(1, aug[col][col])
		for c := 0; c < 2*n; c++ {
			aug[col][c] = gfMul(aug[col][c], inv)
		}

		for row := 0; row < n; row++ {
			if row == col || aug[row][col] == 0 {
				continue
			}
			factor := aug[row][col]
			for c := 0; c < 2*n; c++ {
				aug[row][c] ^= gfMul(factor, aug[col][c])
			}
		}
	}

	out := newMatrix(n, n)
	for i := 0; i < n; i++ {
		copy(out[i], aug[i][n:])
	}
	return out, nil
}

// multiplyShards applies this matrix to a set of equal-length byte shards,
// one output shard per matrix row, treating each column as one input shard.
func (m matrix) multiplyShards(shards [][]byte) [][]byte {
	rows := len(m)
	shardLen := len(shards[0])
	out := make([][]byte, rows)
	for r := 0; r < rows; r++ {
		out[r] = make([]byte, shardLen)
		for c, shard := range shards {
			coeff := m[r][c]
			if coeff == 0 {
				continue
			}
			for b := 0; b < shardLen; b++ {
				out[r][b] ^= gfMul(coeff, shard[b])
			}
		}
	}
	return out
}
