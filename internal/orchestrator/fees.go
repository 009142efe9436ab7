package orchestrator

// Fee tables (spec §6, exact literals). Kept as separate maps per flow
// per Open Question 2: the C2B and B2C tables disagree on overlapping
// denominations (e.g. 20: 3 vs 2) intentionally, so the disagreement is
// explicit in configuration rather than hidden in shared code.
var (
	FeeTableC2B = map[int]int{
		20: 3, 40: 3,
		50: 5, 60: 5, 70: 5,
		80: 8, 90: 8, 100: 8,
		110: 10, 120: 10, 150: 10,
		160: 15, 170: 15, 200: 15,
	}

	FeeTableB2C = map[int]int{
		20:  2,
		50:  3,
		100: 5,
		200: 7,
	}

	FeeTableB2B = map[int]int{
		50:   2,
		100:  3,
		200:  5,
		500:  7,
		1000: 10,
	}
)
