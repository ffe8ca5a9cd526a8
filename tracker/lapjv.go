package tracker

import (
	"errors"
)

// lapLarge is larger than any cost the solver will see
const lapLarge = 1000000.0

var errLAPNoPath = errors.New("lap solver found no augmenting path")

// lapSolver solves the dense square Linear Assignment Problem using the
// Jonker-Volgenant algorithm.  x holds the column assigned to each row and
// y the row assigned to each column.
type lapSolver struct {
	n        int
	cost     [][]float64
	x        []int
	y        []int
	v        []float64
	freeRows []int
}

// solveLAP returns the minimum cost assignment of rows to columns for the
// square cost matrix
func solveLAP(cost [][]float64) (rows []int, cols []int, err error) {

	n := len(cost)

	s := &lapSolver{
		n:        n,
		cost:     cost,
		x:        make([]int, n),
		y:        make([]int, n),
		v:        make([]float64, n),
		freeRows: make([]int, n),
	}

	if n == 0 {
		return s.x, s.y, nil
	}

	free := s.reduceColumns()

	for pass := 0; free > 0 && pass < 2; pass++ {
		free = s.reduceRows(free)
	}

	if free > 0 {
		if err := s.augment(free); err != nil {
			return nil, nil, err
		}
	}

	return s.x, s.y, nil
}

// reduceColumns performs column reduction and reduction transfer, returning
// the number of rows left unassigned
func (s *lapSolver) reduceColumns() int {

	n := s.n
	unique := make([]bool, n)

	for j := 0; j < n; j++ {
		s.x[j] = -1
		s.v[j] = lapLarge
		s.y[j] = 0
	}

	// each column picks its cheapest row
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if c := s.cost[i][j]; c < s.v[j] {
				s.v[j] = c
				s.y[j] = i
			}
		}
	}

	for i := range unique {
		unique[i] = true
	}

	// a row chosen by several columns keeps only the last one
	for j := n - 1; j >= 0; j-- {
		i := s.y[j]

		if s.x[i] < 0 {
			s.x[i] = j
		} else {
			unique[i] = false
			s.y[j] = -1
		}
	}

	free := 0

	for i := 0; i < n; i++ {

		if s.x[i] < 0 {
			s.freeRows[free] = i
			free++
			continue
		}

		if !unique[i] {
			continue
		}

		j := s.x[i]
		minVal := lapLarge

		for j2 := 0; j2 < n; j2++ {
			if j2 == j {
				continue
			}

			if c := s.cost[i][j2] - s.v[j2]; c < minVal {
				minVal = c
			}
		}

		s.v[j] -= minVal
	}

	return free
}

// reduceRows performs augmenting row reduction over the free rows and
// returns how many remain free
func (s *lapSolver) reduceRows(free int) int {

	n := s.n
	current := 0
	stillFree := 0
	steps := 0

	for current < free {

		steps++
		freeI := s.freeRows[current]
		current++

		// find the smallest and second smallest reduced cost in the row
		j1 := 0
		u1 := s.cost[freeI][0] - s.v[0]
		j2 := -1
		u2 := lapLarge

		for j := 1; j < n; j++ {
			c := s.cost[freeI][j] - s.v[j]

			if c >= u2 {
				continue
			}

			if c >= u1 {
				u2 = c
				j2 = j
			} else {
				u2 = u1
				u1 = c
				j2 = j1
				j1 = j
			}
		}

		i0 := s.y[j1]
		lowered := s.v[j1] - (u2 - u1)
		lowers := lowered < s.v[j1]

		if steps < current*n {
			if lowers {
				s.v[j1] = lowered
			} else if i0 >= 0 && j2 >= 0 {
				j1 = j2
				i0 = s.y[j2]
			}

			if i0 >= 0 {
				if lowers {
					current--
					s.freeRows[current] = i0
				} else {
					s.freeRows[stillFree] = i0
					stillFree++
				}
			}

		} else if i0 >= 0 {
			s.freeRows[stillFree] = i0
			stillFree++
		}

		s.x[freeI] = j1
		s.y[j1] = freeI
	}

	return stillFree
}

// augment assigns each remaining free row along a shortest augmenting path
func (s *lapSolver) augment(free int) error {

	n := s.n
	pred := make([]int, n)

	for _, freeI := range s.freeRows[:free] {

		j := s.findPath(freeI, pred)

		if j < 0 || j >= n {
			return errLAPNoPath
		}

		i := -1

		for steps := 0; i != freeI; steps++ {

			if steps >= n {
				return errLAPNoPath
			}

			i = pred[j]
			s.y[j] = i
			j, s.x[i] = s.x[i], j
		}
	}

	return nil
}

// findPath runs a single modified Dijkstra shortest path search from the
// given row and returns the unassigned column it ends on
func (s *lapSolver) findPath(startI int, pred []int) int {

	n := s.n
	lo, hi := 0, 0
	ready := 0
	endJ := -1
	cols := make([]int, n)
	d := make([]float64, n)

	for j := 0; j < n; j++ {
		cols[j] = j
		pred[j] = startI
		d[j] = s.cost[startI][j] - s.v[j]
	}

	for endJ == -1 {

		// the SCAN list is empty, collect the next set of minimum columns
		if lo == hi {
			ready = lo
			hi = s.collectMin(lo, d, cols)

			for k := lo; k < hi; k++ {
				if j := cols[k]; s.y[j] < 0 {
					endJ = j
				}
			}
		}

		if endJ == -1 {
			endJ = s.scan(&lo, &hi, d, cols, pred)
		}
	}

	minD := d[cols[lo]]

	for k := 0; k < ready; k++ {
		j := cols[k]
		s.v[j] += d[j] - minD
	}

	return endJ
}

// collectMin moves the columns with the minimum d[j] to the SCAN list
// starting at lo and returns the new end of the list
func (s *lapSolver) collectMin(lo int, d []float64, cols []int) int {

	hi := lo + 1
	minD := d[cols[lo]]

	for k := hi; k < s.n; k++ {

		j := cols[k]

		if d[j] > minD {
			continue
		}

		if d[j] < minD {
			hi = lo
			minD = d[j]
		}

		cols[k] = cols[hi]
		cols[hi] = j
		hi++
	}

	return hi
}

// scan relaxes the TODO columns using each column on the SCAN list.  It
// returns an unassigned column as soon as one is reached at minimum
// distance, otherwise -1.
func (s *lapSolver) scan(lo, hi *int, d []float64, cols, pred []int) int {

	for *lo != *hi {

		j := cols[*lo]
		*lo++
		i := s.y[j]
		minD := d[j]
		h := s.cost[i][j] - s.v[j] - minD

		for k := *hi; k < s.n; k++ {
			j = cols[k]
			reduced := s.cost[i][j] - s.v[j] - h

			if reduced >= d[j] {
				continue
			}

			d[j] = reduced
			pred[j] = i

			if reduced == minD {
				if s.y[j] < 0 {
					return j
				}

				cols[k] = cols[*hi]
				cols[*hi] = j
				(*hi)++
			}
		}
	}

	return -1
}
