package rag

import "strings"

// mmrOverlapLimit is the word-overlap ratio above which a candidate is
// considered redundant with an already-selected document.
const mmrOverlapLimit = 0.5

// selectDiverse applies greedy diversity selection over ranked
// candidates: the top-ranked document is always taken; each following
// candidate is skipped when its word overlap with any selected document
// exceeds the limit. If the diversity pass leaves room, the remainder
// is filled with the highest-ranked skipped candidates, preserving
// rank order throughout.
func selectDiverse(ranked []candidate, topK int) []candidate {
	if topK <= 0 || len(ranked) == 0 {
		return nil
	}
	if len(ranked) <= topK {
		return ranked
	}

	selected := make([]candidate, 0, topK)
	taken := make([]bool, len(ranked))

	selected = append(selected, ranked[0])
	taken[0] = true

	for i := 1; i < len(ranked) && len(selected) < topK; i++ {
		redundant := false
		for _, s := range selected {
			if wordOverlap(ranked[i].Text, s.Text) > mmrOverlapLimit {
				redundant = true
				break
			}
		}
		if !redundant {
			selected = append(selected, ranked[i])
			taken[i] = true
		}
	}

	for i := 1; i < len(ranked) && len(selected) < topK; i++ {
		if !taken[i] {
			selected = append(selected, ranked[i])
			taken[i] = true
		}
	}
	return selected
}

// wordOverlap is |A∩B| / min(|A|, |B|) over lowercase word sets.
func wordOverlap(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	small, large := setA, setB
	if len(setB) < len(setA) {
		small, large = setB, setA
	}
	shared := 0
	for w := range small {
		if large[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

func wordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[strings.Trim(w, ".,;:!?()[]\"'")] = true
	}
	delete(set, "")
	return set
}
