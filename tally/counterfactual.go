// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
)

// PositionNeed is what a candidate lacked to take one seat.
type PositionNeed struct {
	Position       int           // seat, 1-based
	Winners        []CandidateID // who took (or tied for) the seat instead
	WinnerVotes    *big.Rat      // the winners' total in that round
	CandidateVotes *big.Rat      // the candidate's total in that round
	VotesNeeded    int64         // extra whole votes for a strict win
	// Excluded lists winners of earlier seats; the extra votes must come
	// from voters who approved none of them.
	Excluded []CandidateID
}

// Counterfactual answers "what would candidate have needed to win".
type Counterfactual struct {
	Candidate CandidateID
	WouldWin  bool
	Positions []PositionNeed
}

// ExplainCounterfactual walks the trace seat by seat and, for every seat the
// candidate did not take, reports how many more votes it needed in that
// round. Totals come from the round snapshots, so later seats reflect
// redistributed weight. For a seated candidate only the seats decided before
// its own are reported.
func ExplainCounterfactual(rounds []Round, seats int, candidate CandidateID) (Counterfactual, error) {
	if seats < 1 {
		return Counterfactual{}, fmt.Errorf("%w: got %d", ErrInvalidSeats, seats)
	}

	placement := Place(rounds, seats)
	cf := Counterfactual{
		Candidate: candidate,
		WouldWin:  slices.Contains(placement.Seated, candidate),
	}

	position := 1
	var excluded []CandidateID
	for _, g := range GroupRounds(rounds) {
		winners := g.Winners()
		if len(winners) == 0 || position > seats {
			break
		}
		if cf.WouldWin && slices.Contains(winners, candidate) {
			return cf, nil
		}

		snapshot := g.Snapshot()
		top := snapshot.VoteCount(winners[0])
		own := snapshot.VoteCount(candidate)
		cf.Positions = append(cf.Positions, PositionNeed{
			Position: position,
			Winners: slices.DeleteFunc(slices.Clone(winners), func(c CandidateID) bool {
				return c == candidate
			}),
			WinnerVotes:    top,
			CandidateVotes: own,
			VotesNeeded:    votesToBeat(top, own),
			Excluded:       slices.Clone(excluded),
		})

		excluded = append(excluded, winners...)
		position += len(winners)
	}

	// Ballots ran out before every seat was filled: one vote from a voter who
	// approved none of the winners takes the next open seat.
	if !cf.WouldWin && position <= seats {
		cf.Positions = append(cf.Positions, PositionNeed{
			Position:       position,
			WinnerVotes:    new(big.Rat),
			CandidateVotes: new(big.Rat),
			VotesNeeded:    1,
			Excluded:       slices.Clone(excluded),
		})
	}

	return cf, nil
}

// votesToBeat is the smallest whole n with own+n > threshold. For integer
// totals that is the difference plus one; a fractional gap rounds up.
func votesToBeat(threshold, own *big.Rat) int64 {
	gap := new(big.Rat).Sub(threshold, own)
	if gap.Sign() < 0 {
		return 0
	}
	whole := new(big.Int).Quo(gap.Num(), gap.Denom())
	return whole.Int64() + 1
}

// DescribeCounterfactual renders one sentence per contested seat
func DescribeCounterfactual(cf Counterfactual, labels Labels) []string {
	name := labels.name(cf.Candidate)
	var lines []string
	if cf.WouldWin {
		lines = append(lines, fmt.Sprintf("%s won a seat.", name))
	}

	for _, p := range cf.Positions {
		var line string
		if len(p.Winners) == 0 {
			line = fmt.Sprintf("The %s seat stayed open; %s needed %s",
				humanize.Ordinal(p.Position), name, FormatVotes(big.NewRat(p.VotesNeeded, 1)))
		} else {
			line = fmt.Sprintf("To take the %s seat, %s (%s) needed %s more to beat %s with %s",
				humanize.Ordinal(p.Position), name, FormatVotes(p.CandidateVotes),
				FormatVotes(big.NewRat(p.VotesNeeded, 1)),
				JoinNames(labels.names(p.Winners)), FormatVotes(p.WinnerVotes))
		}
		if len(p.Excluded) > 0 {
			line += fmt.Sprintf(", from voters who did not approve %s", orNames(labels.names(p.Excluded)))
		}
		lines = append(lines, line+".")
	}
	return lines
}

// orNames renders "A", "A or B" or "A, B, or C"
func orNames(names []string) string {
	switch len(names) {
	case 1:
		return names[0]
	case 2:
		return names[0] + " or " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
	}
}
