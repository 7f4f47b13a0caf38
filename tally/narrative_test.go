// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"math/big"
	"strings"
	"testing"
)

var testLabels = Labels{"a": "Option A", "b": "Option B", "c": "Option C"}

func TestJoinNames(t *testing.T) {
	tests := []struct {
		names    []string
		expected string
	}{
		{nil, ""},
		{[]string{"A"}, "A"},
		{[]string{"A", "B"}, "A and B"},
		{[]string{"A", "B", "C"}, "A, B, and C"},
	}

	for _, tt := range tests {
		if got := JoinNames(tt.names); got != tt.expected {
			t.Errorf("JoinNames(%v) = %q, want %q", tt.names, got, tt.expected)
		}
	}
}

func TestVoteConfirmation(t *testing.T) {
	tests := []struct {
		name     string
		approved []string
		expected string
	}{
		{"single vote", []string{"Option A"}, "You voted for: Option A"},
		{"multiple votes", []string{"Option A", "Option B", "Option C"}, "You voted for: Option A, Option B, and Option C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VoteConfirmation(tt.approved); got != tt.expected {
				t.Errorf("VoteConfirmation() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name     string
		seats    int
		groups   []group
		expected string
	}{
		{
			name:     "single winner",
			seats:    1,
			groups:   []group{{2, []CandidateID{"a"}}, {1, []CandidateID{"b", "c"}}},
			expected: "The winner is Option A.",
		},
		{
			name:     "two winners",
			seats:    2,
			groups:   []group{{3, []CandidateID{"a", "b"}}, {2, []CandidateID{"a", "c"}}, {1, []CandidateID{"c"}}},
			expected: "The winners are Option A and Option C.",
		},
		{
			name:     "three winners",
			seats:    3,
			groups:   []group{{2, []CandidateID{"a"}}, {2, []CandidateID{"b"}}, {1, []CandidateID{"c"}}},
			expected: "The winners are Option A, Option B, and Option C.",
		},
		{
			name:     "tie for the only seat",
			seats:    1,
			groups:   []group{{1, []CandidateID{"a"}}, {1, []CandidateID{"b"}}},
			expected: "Option A and Option B are tied for the 1st seat.",
		},
		{
			name:     "tie after a clean seat",
			seats:    2,
			groups:   []group{{3, []CandidateID{"a"}}, {1, []CandidateID{"b"}}, {1, []CandidateID{"c"}}},
			expected: "The winner is Option A. Option B and Option C are tied for the 2nd seat.",
		},
		{
			name:     "three-way tie for two seats",
			seats:    2,
			groups:   []group{{1, []CandidateID{"a"}}, {1, []CandidateID{"b"}}, {1, []CandidateID{"c"}}},
			expected: "Option A, Option B, and Option C are tied for the 1st and 2nd seats.",
		},
		{
			name:     "no votes",
			seats:    1,
			expected: "No winner could be chosen because no votes were cast.",
		},
		{
			name:     "ballots exhausted",
			seats:    3,
			groups:   []group{{2, []CandidateID{"a"}}, {1, []CandidateID{"b"}}},
			expected: "The winners are Option A and Option B. Only 2 of 3 seats could be filled; the 3rd seat stayed open because no ballots were left.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := ballotsOf(t, tt.groups...)
			res, err := Tally(tt.seats, agg.Ballots, agg.Index)
			if err != nil {
				t.Fatalf("Tally failed: %v", err)
			}

			if got := Summary(res, testLabels); got != tt.expected {
				t.Errorf("Summary() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSummaryFallsBackToIDs(t *testing.T) {
	agg := ballotsOf(t, group{1, []CandidateID{"a"}})
	res, err := Tally(1, agg.Ballots, agg.Index)
	if err != nil {
		t.Fatalf("Tally failed: %v", err)
	}

	if got := Summary(res, nil); got != "The winner is a." {
		t.Errorf("Expected id fallback, got %q", got)
	}
}

func TestDescribeRounds(t *testing.T) {
	agg := ballotsOf(t,
		group{3, []CandidateID{"a"}},
		group{1, []CandidateID{"b"}},
		group{1, []CandidateID{"a", "b"}},
		group{1, []CandidateID{"c"}},
	)
	res, err := Tally(3, agg.Ballots, agg.Index)
	if err != nil {
		t.Fatalf("Tally failed: %v", err)
	}

	lines := DescribeRounds(res, testLabels)
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d: %q", len(lines), lines)
	}

	// Round 1: A=4, B=2, C=1; excess 2 splits 3/4 spent, 1/4 onto {B}.
	if !strings.HasPrefix(lines[0], "Round 1: Option A leads with 4 votes.") {
		t.Errorf("Unexpected first line: %q", lines[0])
	}
	if !strings.Contains(lines[0], "0.5 votes of surplus carry over") ||
		!strings.Contains(lines[0], "1.5 votes from ballots approving only winners are spent") {
		t.Errorf("Expected transfer details in first line: %q", lines[0])
	}

	// Round 2: B=3/2, C=1; B wins and its ballots are spent.
	if !strings.HasPrefix(lines[1], "Round 2: Option B leads with 1.5 votes.") {
		t.Errorf("Unexpected second line: %q", lines[1])
	}
	if lines[2] != "Round 3: Option C leads with 1 vote." {
		t.Errorf("Unexpected third line: %q", lines[2])
	}
}

func TestFormatVotes(t *testing.T) {
	tests := []struct {
		votes    *big.Rat
		expected string
	}{
		{big.NewRat(0, 1), "0 votes"},
		{big.NewRat(1, 1), "1 vote"},
		{big.NewRat(5, 1), "5 votes"},
		{big.NewRat(1234, 1), "1,234 votes"},
		{big.NewRat(6, 5), "1.2 votes"},
		{big.NewRat(1, 3), "0.33 votes"},
	}

	for _, tt := range tests {
		if got := FormatVotes(tt.votes); got != tt.expected {
			t.Errorf("FormatVotes(%s) = %q, want %q", tt.votes.RatString(), got, tt.expected)
		}
	}
}
