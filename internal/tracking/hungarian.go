package tracking

import "math"

// Forbidden marks a cost-matrix entry that must never be selected.
const Forbidden = 1e18

// HungarianAssign solves the rectangular assignment problem for an n×m cost
// matrix with the Kuhn-Munkres method (Jonker-Volgenant potentials) in O(k³),
// k = max(n, m). It returns assignment[i] = column assigned to row i, or -1
// when row i is left unpaired. Entries ≥ Forbidden (and NaN) are never
// selected. The problem is padded to k×k; every slot not filled by a permitted
// pair costs NoMatchPenalty(cost), and the total is minimised.
func HungarianAssign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	result := make([]int, n)
	for i := range result {
		result[i] = -1
	}
	if m == 0 {
		return result
	}

	lo, hi, found := costRange(cost, m)
	if !found {
		return result
	}
	// Shifting to zero keeps the padding on the same scale as real costs.
	noMatch := hi - lo + 1

	dim := max(n, m)
	c := make([][]float64, dim)
	for i := range c {
		c[i] = make([]float64, dim)
		for j := range c[i] {
			if i < n && j < m && permitted(cost, i, j) {
				c[i][j] = cost[i][j] - lo
			} else {
				c[i][j] = noMatch
			}
		}
	}

	// 1-indexed potentials; column 0 is virtual.
	const inf = math.MaxFloat64 / 2
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1)
	way := make([]int, dim+1)
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0
		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1
			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			if j1 < 0 {
				break
			}
			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	for j := 1; j <= dim; j++ {
		row, col := p[j]-1, j-1
		if row < 0 || row >= n || col >= m {
			continue
		}
		if permitted(cost, row, col) {
			result[row] = col
		}
	}
	return result
}

// NoMatchPenalty is the cost charged for an unpaired slot: one above the
// largest permitted cost, measured from the smallest.
func NoMatchPenalty(cost [][]float64) float64 {
	if len(cost) == 0 {
		return 0
	}
	lo, hi, found := costRange(cost, len(cost[0]))
	if !found {
		return 0
	}
	return hi - lo + 1
}

func permitted(cost [][]float64, i, j int) bool {
	return j < len(cost[i]) && cost[i][j] < Forbidden
}

// costRange returns the smallest and largest permitted entries in the first
// m columns.
func costRange(cost [][]float64, m int) (lo, hi float64, found bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := range cost {
		for j := range m {
			if permitted(cost, i, j) {
				lo, hi, found = math.Min(lo, cost[i][j]), math.Max(hi, cost[i][j]), true
			}
		}
	}
	return lo, hi, found
}
