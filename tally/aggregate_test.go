// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"errors"
	"slices"
	"testing"
)

func TestAggregateBallots(t *testing.T) {
	approvals := []VoterApproval{
		{Voter: "v1", Approved: []CandidateID{"a", "b"}},
		{Voter: "v2", Approved: []CandidateID{"b", "a"}},
		{Voter: "v3", Approved: []CandidateID{"c"}},
		{Voter: "v4", Approved: []CandidateID{"a", "a", "b"}},
	}

	agg, err := AggregateBallots([]CandidateID{"a", "b", "c", "d"}, approvals)
	if err != nil {
		t.Fatalf("AggregateBallots failed: %v", err)
	}

	if len(agg.Ballots) != 2 {
		t.Errorf("Expected 2 distinct approval sets, got %v", agg.Ballots.Sets())
	}
	if got := agg.Ballots.Weight(NewApprovalSet("a", "b")); got.Cmp(rat(3, 1)) != 0 {
		t.Errorf("Expected {a, b} to weigh 3, got %s", got.RatString())
	}
	if got := agg.Ballots.Weight(NewApprovalSet("c")); got.Cmp(rat(1, 1)) != 0 {
		t.Errorf("Expected {c} to weigh 1, got %s", got.RatString())
	}

	counts := map[CandidateID]int{"a": 3, "b": 3, "c": 1, "d": 0}
	for c, want := range counts {
		if got := agg.Index.count(c); got != want {
			t.Errorf("Expected %s to have %d voters, got %d", c, want, got)
		}
	}
	if _, ok := agg.Index["d"]; !ok {
		t.Error("Expected candidate without approvals to be indexed")
	}
	if got := agg.Index.voters("c"); !slices.Equal(got, []VoterID{"v3"}) {
		t.Errorf("Expected c voters [v3], got %v", got)
	}
}

func TestAggregateBallotsOrderIndependent(t *testing.T) {
	approvals := []VoterApproval{
		{Voter: "v1", Approved: []CandidateID{"a", "b"}},
		{Voter: "v2", Approved: []CandidateID{"c"}},
		{Voter: "v3", Approved: []CandidateID{"b"}},
		{Voter: "v4", Approved: []CandidateID{"b", "a"}},
	}
	reversed := slices.Clone(approvals)
	slices.Reverse(reversed)

	first, err := AggregateBallots(nil, approvals)
	if err != nil {
		t.Fatalf("AggregateBallots failed: %v", err)
	}
	second, err := AggregateBallots(nil, reversed)
	if err != nil {
		t.Fatalf("AggregateBallots failed: %v", err)
	}

	if !first.Ballots.Equal(second.Ballots) {
		t.Errorf("Aggregation depends on input order: %v vs %v", first.Ballots.Sets(), second.Ballots.Sets())
	}
	if !slices.Equal(first.Index.candidates(), []CandidateID{"a", "b", "c"}) {
		t.Errorf("Expected open universe [a b c], got %v", first.Index.candidates())
	}
}

func TestAggregateBallotsRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name      string
		approvals []VoterApproval
		wantErr   error
	}{
		{
			name:      "empty approval set",
			approvals: []VoterApproval{{Voter: "v1"}},
			wantErr:   ErrEmptyApproval,
		},
		{
			name: "duplicate voter",
			approvals: []VoterApproval{
				{Voter: "v1", Approved: []CandidateID{"a"}},
				{Voter: "v1", Approved: []CandidateID{"b"}},
			},
			wantErr: ErrDuplicateVoter,
		},
		{
			name:      "unknown candidate",
			approvals: []VoterApproval{{Voter: "v1", Approved: []CandidateID{"a", "z"}}},
			wantErr:   ErrUnknownCandidate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AggregateBallots([]CandidateID{"a", "b"}, tt.approvals)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AggregateBallots error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAggregateBallotsRejectsSeparatorInID(t *testing.T) {
	joined := CandidateID("x\x1fy")

	tests := []struct {
		name       string
		candidates []CandidateID
		approvals  []VoterApproval
	}{
		{
			name:      "open universe",
			approvals: []VoterApproval{{Voter: "v1", Approved: []CandidateID{joined}}},
		},
		{
			name:       "listed candidate",
			candidates: []CandidateID{joined, "z"},
			approvals:  []VoterApproval{{Voter: "v1", Approved: []CandidateID{"z"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, err := AggregateBallots(tt.candidates, tt.approvals)
			if !errors.Is(err, ErrInvalidCandidate) {
				t.Fatalf("AggregateBallots error = %v, want %v", err, ErrInvalidCandidate)
			}
			if agg.Index != nil {
				t.Errorf("AggregateBallots returned index %v alongside error", agg.Index)
			}
		})
	}
}

func TestApprovalSet(t *testing.T) {
	set := NewApprovalSet("c", "a", "b", "a")

	if set != NewApprovalSet("a", "b", "c") {
		t.Error("Expected sets with the same members to be equal")
	}
	if set.Len() != 3 {
		t.Errorf("Expected 3 members, got %d", set.Len())
	}
	if !set.Contains("b") || set.Contains("d") {
		t.Error("Contains reported wrong membership")
	}
	if !set.ContainsAny([]CandidateID{"d", "c"}) || set.ContainsAny([]CandidateID{"d"}) {
		t.Error("ContainsAny reported wrong membership")
	}
	if got := set.Without([]CandidateID{"b"}); got != NewApprovalSet("a", "c") {
		t.Errorf("Expected {a, c}, got %s", got)
	}
	if !set.Without([]CandidateID{"a", "b", "c"}).IsEmpty() {
		t.Error("Expected removing every member to leave an empty set")
	}
	if set.String() != "{a, b, c}" {
		t.Errorf("Expected {a, b, c}, got %s", set.String())
	}
	if NewApprovalSet().Len() != 0 {
		t.Error("Expected empty set to have no members")
	}
}

func TestBallotWeightMapJSON(t *testing.T) {
	m := BallotWeightMap{}
	m.Add(NewApprovalSet("b"), rat(6, 5))
	m.Add(NewApprovalSet("a", "c"), rat(2, 1))
	m.Add(NewApprovalSet("b"), rat(1, 5))

	data, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}

	expected := `[{"approvals":["a","c"],"weight":"2"},{"approvals":["b"],"weight":"7/5"}]`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, data)
	}
	if m.Total().Cmp(rat(17, 5)) != 0 {
		t.Errorf("Expected total 17/5, got %s", m.Total().RatString())
	}
}

func TestWinnerOverlap(t *testing.T) {
	index := CandidateIndex{
		"1": {"101": {}, "102": {}},
		"2": {"102": {}, "103": {}},
	}

	overlap := WinnerOverlap([]CandidateID{"1", "2"}, index)

	// 101 and 103 approved one winner, 102 approved both
	if !slices.Equal(overlap, []int{2, 1}) {
		t.Errorf("Expected [2 1], got %v", overlap)
	}
}
