package patterns

// mostCommon returns the most frequent value in an ordered sequence, with
// ties broken by first occurrence. The second result is false for an empty
// sequence. Every "dominant value" decision in this package goes through
// this one helper so the tie-break stays consistent.
func mostCommon[T comparable](values []T) (T, bool) {
	var best T
	if len(values) == 0 {
		return best, false
	}

	counts := make(map[T]int, len(values))
	order := make([]T, 0, len(values))
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	bestCount := 0
	for _, v := range order {
		if counts[v] > bestCount {
			best = v
			bestCount = counts[v]
		}
	}
	return best, true
}
