package captcha

// PluralityVote picks the most frequent candidate. Ties go to the
// candidate seen first, so the result is stable for a given candidate
// order. No candidates yields the empty Solution.
func PluralityVote(candidates []string) Solution {
	if len(candidates) == 0 {
		return Solution{}
	}

	counts := make(map[string]int, len(candidates))
	var order []string
	for _, c := range candidates {
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}

	best := order[0]
	for _, c := range order[1:] {
		if counts[c] > counts[best] {
			best = c
		}
	}

	return Solution{
		Text:            best,
		Confidence:      float64(counts[best]) / float64(len(candidates)),
		Votes:           counts[best],
		TotalCandidates: len(candidates),
	}
}
