// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
)

// Labels maps candidates to their display text.
type Labels map[CandidateID]string

func (l Labels) name(c CandidateID) string {
	if label, ok := l[c]; ok && label != "" {
		return label
	}
	return string(c)
}

func (l Labels) names(ids []CandidateID) []string {
	out := make([]string, len(ids))
	for i, c := range ids {
		out[i] = l.name(c)
	}
	return out
}

// JoinNames renders "A", "A and B" or "A, B, and C"
func JoinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}

// VoteConfirmation is the message shown after a ballot is stored
func VoteConfirmation(approved []string) string {
	return "You voted for: " + JoinNames(approved)
}

// Summary renders the headline result text for a finished tally
func Summary(res *Result, labels Labels) string {
	var parts []string

	if len(res.Winners) > 0 {
		if len(res.Winners) == 1 {
			parts = append(parts, fmt.Sprintf("The winner is %s.", labels.name(res.Winners[0])))
		} else {
			parts = append(parts, fmt.Sprintf("The winners are %s.", JoinNames(labels.names(res.Winners))))
		}
	}

	switch res.Outcome() {
	case UnresolvedTie:
		parts = append(parts, fmt.Sprintf("%s are tied for the %s.",
			JoinNames(labels.names(res.Tie.Candidates)), seatPhrase(res.Tie.Seat, res.Tie.Remaining)))
	case InsufficientBallots:
		if len(res.Winners) == 0 {
			parts = append(parts, "No winner could be chosen because no votes were cast.")
		} else {
			open := res.Seats - len(res.Winners)
			parts = append(parts, fmt.Sprintf("Only %d of %d seats could be filled; the %s stayed open because no ballots were left.",
				len(res.Winners), res.Seats, seatPhrase(len(res.Winners)+1, open)))
		}
	}

	return strings.Join(parts, " ")
}

// seatPhrase renders "2nd seat" or "2nd and 3rd seats"
func seatPhrase(first, count int) string {
	if count <= 1 {
		return humanize.Ordinal(first) + " seat"
	}
	ordinals := make([]string, count)
	for i := range count {
		ordinals[i] = humanize.Ordinal(first + i)
	}
	return JoinNames(ordinals) + " seats"
}

// DescribeRounds renders one line per engine round, for step-by-step display
func DescribeRounds(res *Result, labels Labels) []string {
	var lines []string
	for _, g := range GroupRounds(res.Rounds) {
		r := g.Snapshot()
		winners := g.Winners()
		header := fmt.Sprintf("Round %d:", r.Step+1)

		if len(winners) == 0 {
			lines = append(lines, header+" no ballots remain for any candidate.")
			continue
		}

		votes := FormatVotes(r.VoteCount(winners[0]))
		var line string
		if len(winners) == 1 {
			line = fmt.Sprintf("%s %s leads with %s.", header, labels.name(winners[0]), votes)
		} else {
			line = fmt.Sprintf("%s %s tie with %s each.", header, JoinNames(labels.names(winners)), votes)
		}

		if t := r.Transfer; t != nil {
			line += fmt.Sprintf(" %s of surplus carry over to other approved candidates", FormatVotes(t.Carried))
			if t.Discarded.Sign() > 0 {
				line += fmt.Sprintf(" and %s from ballots approving only winners are spent", FormatVotes(t.Discarded))
			}
			line += "."
		}
		lines = append(lines, line)
	}
	return lines
}

// FormatVotes renders a weight as "1 vote", "5 votes" or "1.2 votes"
func FormatVotes(w *big.Rat) string {
	var n string
	if w.IsInt() {
		n = humanize.Comma(w.Num().Int64())
	} else {
		f, _ := w.Float64()
		n = humanize.FtoaWithDigits(f, 2)
	}
	if n == "1" {
		return "1 vote"
	}
	return n + " votes"
}
