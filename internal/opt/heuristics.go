package opt

// twoOptImprove reverses route segments while that lowers a route's cost.
// Reversals that put a delivery before its pickup are rejected by Evaluate.
func (s *search) twoOptImprove(st *state, iterations int) *state {
	if iterations <= 0 {
		iterations = 1
	}
	for v, pl := range st.plans {
		best := pl
		bestCost := st.routeCost[v]
		n := len(best)
		for it := 0; it < iterations; it++ {
			improved := false
			for i := 0; i < n-1; i++ {
				for k := i + 1; k < n; k++ {
					cand := twoOptSwap(best, i, k)
					c, ok := s.p.Evaluate(v, cand)
					if ok && c+1e-9 < bestCost {
						best, bestCost = cand, c
						improved = true
					}
				}
			}
			if !improved {
				break
			}
		}
		st.plans[v] = best
		st.routeCost[v] = bestCost
	}
	st.recost()
	return st
}

func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	// reverse i..k
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}
