// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

// WinnerOverlap counts voters by how many of the winners they approved.
// Element k-1 is the number of voters who approved exactly k winners;
// voters approving none of them are not counted.
func WinnerOverlap(winners []CandidateID, index CandidateIndex) []int {
	approvedWinners := make(map[VoterID]int)
	for _, w := range winners {
		for v := range index[w] {
			approvedWinners[v]++
		}
	}

	overlap := make([]int, len(winners))
	for _, k := range approvedWinners {
		overlap[k-1]++
	}
	return overlap
}
