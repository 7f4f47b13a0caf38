// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"encoding/json"
	"math/big"
	"slices"
	"strings"
)

// CandidateID identifies a poll option.
type CandidateID string

// VoterID identifies a single ballot.
type VoterID string

// setSeparator joins set members; AggregateBallots rejects ids containing it.
const setSeparator = "\x1f"

// ApprovalSet is an immutable, order-independent set of candidates.
// Two sets with the same members compare equal with == and can be used as map keys.
type ApprovalSet struct {
	key string
}

// NewApprovalSet builds a set from ids, ignoring order and duplicates
func NewApprovalSet(ids ...CandidateID) ApprovalSet {
	if len(ids) == 0 {
		return ApprovalSet{}
	}

	members := make([]string, 0, len(ids))
	for _, id := range ids {
		members = append(members, string(id))
	}
	slices.Sort(members)
	members = slices.Compact(members)

	return ApprovalSet{key: strings.Join(members, setSeparator)}
}

// Members returns the candidates in ascending id order
func (s ApprovalSet) Members() []CandidateID {
	if s.key == "" {
		return nil
	}

	parts := strings.Split(s.key, setSeparator)
	members := make([]CandidateID, len(parts))
	for i, p := range parts {
		members[i] = CandidateID(p)
	}
	return members
}

func (s ApprovalSet) Len() int {
	if s.key == "" {
		return 0
	}
	return strings.Count(s.key, setSeparator) + 1
}

func (s ApprovalSet) IsEmpty() bool {
	return s.key == ""
}

// Contains reports whether c is a member of the set
func (s ApprovalSet) Contains(c CandidateID) bool {
	_, found := slices.BinarySearch(s.Members(), c)
	return found
}

// ContainsAny reports whether the set shares at least one member with ids
func (s ApprovalSet) ContainsAny(ids []CandidateID) bool {
	members := s.Members()
	for _, id := range ids {
		if _, found := slices.BinarySearch(members, id); found {
			return true
		}
	}
	return false
}

// Without returns the set minus the given candidates
func (s ApprovalSet) Without(ids []CandidateID) ApprovalSet {
	kept := slices.DeleteFunc(s.Members(), func(c CandidateID) bool {
		return slices.Contains(ids, c)
	})
	return NewApprovalSet(kept...)
}

func (s ApprovalSet) String() string {
	return "{" + strings.ReplaceAll(s.key, setSeparator, ", ") + "}"
}

func (s ApprovalSet) MarshalJSON() ([]byte, error) {
	members := s.Members()
	if members == nil {
		members = []CandidateID{}
	}
	return json.Marshal(members)
}

func (s ApprovalSet) compare(o ApprovalSet) int {
	return strings.Compare(s.key, o.key)
}

// BallotWeightMap maps each distinct approval set to the weight of the ballots
// carrying it. Weights start as voter counts and turn fractional once surplus
// is redistributed.
type BallotWeightMap map[ApprovalSet]*big.Rat

// Add accumulates w onto set. The map keeps its own copy of w.
func (m BallotWeightMap) Add(set ApprovalSet, w *big.Rat) {
	if cur, ok := m[set]; ok {
		cur.Add(cur, w)
		return
	}
	m[set] = new(big.Rat).Set(w)
}

// Weight returns a copy of the weight held by set (zero when absent)
func (m BallotWeightMap) Weight(set ApprovalSet) *big.Rat {
	if w, ok := m[set]; ok {
		return new(big.Rat).Set(w)
	}
	return new(big.Rat)
}

// Sets returns every approval set in canonical order
func (m BallotWeightMap) Sets() []ApprovalSet {
	sets := make([]ApprovalSet, 0, len(m))
	for set := range m {
		sets = append(sets, set)
	}
	slices.SortFunc(sets, ApprovalSet.compare)
	return sets
}

// Total sums all weights
func (m BallotWeightMap) Total() *big.Rat {
	total := new(big.Rat)
	for _, set := range m.Sets() {
		total.Add(total, m[set])
	}
	return total
}

// VoteCount sums the weight of every entry whose set contains c
func (m BallotWeightMap) VoteCount(c CandidateID) *big.Rat {
	count := new(big.Rat)
	for _, set := range m.Sets() {
		if set.Contains(c) {
			count.Add(count, m[set])
		}
	}
	return count
}

// Clone deep-copies the map, weights included
func (m BallotWeightMap) Clone() BallotWeightMap {
	out := make(BallotWeightMap, len(m))
	for set, w := range m {
		out[set] = new(big.Rat).Set(w)
	}
	return out
}

// Equal reports whether both maps hold exactly the same sets and weights
func (m BallotWeightMap) Equal(o BallotWeightMap) bool {
	if len(m) != len(o) {
		return false
	}
	for set, w := range m {
		ow, ok := o[set]
		if !ok || w.Cmp(ow) != 0 {
			return false
		}
	}
	return true
}

type weightEntry struct {
	Approvals ApprovalSet `json:"approvals"`
	Weight    string      `json:"weight"`
}

// MarshalJSON encodes the map as a list ordered by approval set, with exact
// weights in "num/den" form.
func (m BallotWeightMap) MarshalJSON() ([]byte, error) {
	entries := make([]weightEntry, 0, len(m))
	for _, set := range m.Sets() {
		entries = append(entries, weightEntry{Approvals: set, Weight: m[set].RatString()})
	}
	return json.Marshal(entries)
}

// VoterSet is the set of voters who approved a candidate.
type VoterSet map[VoterID]struct{}

// CandidateIndex maps every candidate in the poll to the voters approving it.
// It is used for reporting only; the tally math runs on BallotWeightMap.
type CandidateIndex map[CandidateID]VoterSet

// candidates returns every indexed candidate in ascending id order
func (ix CandidateIndex) candidates() []CandidateID {
	ids := make([]CandidateID, 0, len(ix))
	for c := range ix {
		ids = append(ids, c)
	}
	slices.Sort(ids)
	return ids
}

// count is the number of voters approving c
func (ix CandidateIndex) count(c CandidateID) int {
	return len(ix[c])
}

// voters returns the voters approving c in ascending order
func (ix CandidateIndex) voters(c CandidateID) []VoterID {
	voters := make([]VoterID, 0, len(ix[c]))
	for v := range ix[c] {
		voters = append(voters, v)
	}
	slices.Sort(voters)
	return voters
}

// restrict copies the index keeping only the given candidates
func (ix CandidateIndex) restrict(candidates []CandidateID) CandidateIndex {
	out := make(CandidateIndex, len(candidates))
	for _, c := range candidates {
		voters := make(VoterSet, len(ix[c]))
		for v := range ix[c] {
			voters[v] = struct{}{}
		}
		out[c] = voters
	}
	return out
}
