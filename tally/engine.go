// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
)

// ErrInvalidSeats is returned when a tally is requested for fewer than one seat
var ErrInvalidSeats = errors.New("seats must be at least 1")

// Transfer records what happened to the winner-bearing ballots after a round.
// Carried + Discarded always equals Excess.
type Transfer struct {
	Excess    *big.Rat // winner votes minus runner-up votes
	Removed   *big.Rat // total weight of ballots approving a round winner
	Carried   *big.Rat // weight moved onto the reduced approval sets
	Discarded *big.Rat // share of ballots that approved winners only
}

// Round is one trace entry. A round decided by a tie produces one entry per
// tied winner, all sharing the same pre-round snapshot.
type Round struct {
	Step    int             // engine round, starting at 0
	Ballots BallotWeightMap // live ballots before the decision
	Voters  CandidateIndex  // eligible candidates and their voters before the decision
	Winner  CandidateID     // empty when no candidate had any votes
	IsTie   bool
	// Transfer is nil when the round filled the last seats or had no winner.
	Transfer *Transfer
}

func (r Round) HasWinner() bool {
	return r.Winner != ""
}

// VoteCount is c's weighted vote total in this round
func (r Round) VoteCount(c CandidateID) *big.Rat {
	return r.Ballots.VoteCount(c)
}

// VoteCounts returns the vote total of every candidate still eligible in this round
func (r Round) VoteCounts() map[CandidateID]*big.Rat {
	counts := make(map[CandidateID]*big.Rat, len(r.Voters))
	for c := range r.Voters {
		counts[c] = r.Ballots.VoteCount(c)
	}
	return counts
}

// Outcome classifies a finished tally.
type Outcome int

const (
	Complete Outcome = iota
	InsufficientBallots
	UnresolvedTie
)

func (o Outcome) String() string {
	switch o {
	case Complete:
		return "complete"
	case InsufficientBallots:
		return "insufficient_ballots"
	case UnresolvedTie:
		return "unresolved_tie"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the outcome of one tally run. It is never modified after Tally returns.
type Result struct {
	Seats   int
	Winners []CandidateID // seated candidates in seat order, never more than Seats
	Tie     *Tie          // candidates jointly tied for the last open seats, if any
	Rounds  []Round
}

func (r *Result) Outcome() Outcome {
	switch {
	case r.Tie != nil:
		return UnresolvedTie
	case len(r.Winners) < r.Seats:
		return InsufficientBallots
	default:
		return Complete
	}
}

// Tally fills seats by repeatedly electing the most-approved candidates and
// passing their surplus on to the other candidates of their ballots.
//
// Each round every eligible candidate is credited with the weight of every
// ballot approving it. All candidates sharing the top total win the round.
// When seats remain, the winners' excess over the runner-up is split across
// their ballots in proportion to ballot weight and credited to the same
// ballots with the winners removed; ballots approving only winners are spent.
// The tally stops once the seats are filled or no ballot is left.
//
// Weights are exact rationals, so ties are detected by exact comparison.
func Tally(seats int, ballots BallotWeightMap, index CandidateIndex) (*Result, error) {
	if seats < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSeats, seats)
	}

	live := ballots.Clone()
	eligible := candidateUniverse(ballots, index)

	var rounds []Round
	filled := 0
	for step := 0; ; step++ {
		snapshot := live.Clone()
		voters := index.restrict(eligible)

		counts := make(map[CandidateID]*big.Rat, len(eligible))
		for _, c := range eligible {
			counts[c] = live.VoteCount(c)
		}

		maxVotes, leaders := leading(eligible, counts)
		if maxVotes.Sign() == 0 {
			slog.Debug("tally stopped: no remaining votes", "step", step, "filled", filled, "seats", seats)
			rounds = append(rounds, Round{Step: step, Ballots: snapshot, Voters: voters})
			break
		}

		var transfer *Transfer
		if filled+len(leaders) < seats {
			runnerUp := new(big.Rat)
			for _, c := range eligible {
				if !slices.Contains(leaders, c) && counts[c].Cmp(runnerUp) > 0 {
					runnerUp = counts[c]
				}
			}
			transfer = redistribute(live, leaders, new(big.Rat).Sub(maxVotes, runnerUp))
		}

		isTie := len(leaders) > 1
		for _, c := range leaders {
			rounds = append(rounds, Round{
				Step:     step,
				Ballots:  snapshot,
				Voters:   voters,
				Winner:   c,
				IsTie:    isTie,
				Transfer: transfer,
			})
		}

		slog.Debug("tally round",
			"step", step,
			"winners", leaders,
			"votes", maxVotes.FloatString(3),
			"tie", isTie,
		)

		filled += len(leaders)
		eligible = slices.DeleteFunc(eligible, func(c CandidateID) bool {
			return slices.Contains(leaders, c)
		})

		if filled >= seats || len(live) == 0 {
			break
		}
	}

	placement := Place(rounds, seats)
	return &Result{
		Seats:   seats,
		Winners: placement.Seated,
		Tie:     placement.Tie,
		Rounds:  rounds,
	}, nil
}

// candidateUniverse lists every candidate known to the index or named on a
// ballot, in ascending id order
func candidateUniverse(ballots BallotWeightMap, index CandidateIndex) []CandidateID {
	seen := make(map[CandidateID]bool, len(index))
	var all []CandidateID
	for c := range index {
		seen[c] = true
		all = append(all, c)
	}
	for set := range ballots {
		for _, c := range set.Members() {
			if !seen[c] {
				seen[c] = true
				all = append(all, c)
			}
		}
	}
	slices.Sort(all)
	return all
}

// leading returns the top vote total and every candidate holding it
func leading(candidates []CandidateID, counts map[CandidateID]*big.Rat) (*big.Rat, []CandidateID) {
	top := new(big.Rat)
	var leaders []CandidateID
	for _, c := range candidates {
		switch counts[c].Cmp(top) {
		case 1:
			top = counts[c]
			leaders = []CandidateID{c}
		case 0:
			leaders = append(leaders, c)
		}
	}
	return top, leaders
}

// redistribute removes every ballot approving a winner from live and credits
// each with its proportional share of excess under its reduced approval set
func redistribute(live BallotWeightMap, winners []CandidateID, excess *big.Rat) *Transfer {
	t := &Transfer{
		Excess:    new(big.Rat).Set(excess),
		Removed:   new(big.Rat),
		Carried:   new(big.Rat),
		Discarded: new(big.Rat),
	}

	var bearing []ApprovalSet
	removed := make(map[ApprovalSet]*big.Rat)
	for _, set := range live.Sets() {
		if set.ContainsAny(winners) {
			bearing = append(bearing, set)
			removed[set] = live[set]
			t.Removed.Add(t.Removed, live[set])
		}
	}
	for _, set := range bearing {
		delete(live, set)
	}

	for _, set := range bearing {
		share := new(big.Rat).Quo(removed[set], t.Removed)
		share.Mul(share, excess)

		reduced := set.Without(winners)
		if reduced.IsEmpty() {
			t.Discarded.Add(t.Discarded, share)
			continue
		}
		live.Add(reduced, share)
		t.Carried.Add(t.Carried, share)
	}

	return t
}
