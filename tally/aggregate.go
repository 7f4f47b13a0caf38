// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrEmptyApproval    = errors.New("approval set is empty")
	ErrDuplicateVoter   = errors.New("voter appears more than once")
	ErrUnknownCandidate = errors.New("unknown candidate")
	ErrInvalidCandidate = errors.New("candidate id contains a reserved character")
)

func validCandidate(c CandidateID) bool {
	return !strings.Contains(string(c), setSeparator)
}

// VoterApproval is one voter's ballot: the candidates they approved.
type VoterApproval struct {
	Voter    VoterID
	Approved []CandidateID
}

// Aggregate is the engine input built from raw ballots
type Aggregate struct {
	Ballots BallotWeightMap
	Index   CandidateIndex
}

// AggregateBallots groups ballots by their exact approval set and counts the
// voters holding each set. Every candidate in candidates is indexed, even
// with no approvals. When candidates is empty the universe is whatever the
// ballots mention.
//
// Empty approval sets, repeated voters, candidates outside the universe and
// ids containing the set separator are rejected; the caller must clean those
// up before tallying.
func AggregateBallots(candidates []CandidateID, approvals []VoterApproval) (Aggregate, error) {
	agg := Aggregate{
		Ballots: make(BallotWeightMap),
		Index:   make(CandidateIndex, len(candidates)),
	}

	closed := len(candidates) > 0
	for _, c := range candidates {
		if !validCandidate(c) {
			return Aggregate{}, fmt.Errorf("candidate %q: %w", c, ErrInvalidCandidate)
		}
		agg.Index[c] = make(VoterSet)
	}

	one := big.NewRat(1, 1)
	seen := make(map[VoterID]bool, len(approvals))
	for _, va := range approvals {
		if seen[va.Voter] {
			return Aggregate{}, fmt.Errorf("voter %q: %w", va.Voter, ErrDuplicateVoter)
		}
		seen[va.Voter] = true

		for _, c := range va.Approved {
			if !validCandidate(c) {
				return Aggregate{}, fmt.Errorf("voter %q approved %q: %w", va.Voter, c, ErrInvalidCandidate)
			}
		}

		set := NewApprovalSet(va.Approved...)
		if set.IsEmpty() {
			return Aggregate{}, fmt.Errorf("voter %q: %w", va.Voter, ErrEmptyApproval)
		}

		for _, c := range set.Members() {
			voters, ok := agg.Index[c]
			if !ok {
				if closed || c == "" {
					return Aggregate{}, fmt.Errorf("voter %q approved %q: %w", va.Voter, c, ErrUnknownCandidate)
				}
				voters = make(VoterSet)
				agg.Index[c] = voters
			}
			voters[va.Voter] = struct{}{}
		}

		agg.Ballots.Add(set, one)
	}

	return agg, nil
}
