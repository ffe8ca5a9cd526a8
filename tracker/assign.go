package tracker

import "fmt"

// solveAssignment finds the minimum total cost matching between the rows and
// columns of a rectangular cost matrix.  Pairs whose cost is at or above
// limit are never matched.  The returned slice holds the matched column for
// each row, or -1 when the row is left unmatched.
func solveAssignment(cost [][]float64, limit float64) ([]int, error) {

	rows := len(cost)
	matched := make([]int, rows)

	for i := range matched {
		matched[i] = -1
	}

	if rows == 0 || len(cost[0]) == 0 {
		return matched, nil
	}

	cols := len(cost[0])

	// extend to a square matrix of size rows+cols where every row and column
	// may fall through to a dummy partner at half the limit, so a real pair
	// is only chosen when it is cheaper than leaving both sides unmatched
	n := rows + cols
	ext := make([][]float64, n)

	for i := range ext {
		ext[i] = make([]float64, n)

		for j := range ext[i] {
			switch {
			case i < rows && j < cols:
				ext[i][j] = cost[i][j]
			case i >= rows && j >= cols:
				ext[i][j] = 0
			default:
				ext[i][j] = limit / 2
			}
		}
	}

	x, _, err := solveLAP(ext)

	if err != nil {
		return nil, fmt.Errorf("error solving assignment: %w", err)
	}

	for i := 0; i < rows; i++ {
		j := x[i]

		if j < 0 || j >= cols || cost[i][j] >= limit {
			continue
		}

		matched[i] = j
	}

	return matched, nil
}
