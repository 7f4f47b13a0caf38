// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally computes multi-winner results for approval polls.

Every voter approves any number of options. The engine fills a fixed number
of seats in rounds, electing the most-approved candidates each round and
passing their surplus on to the other candidates their voters approved.

# Aggregation

Ballots are grouped by their exact approval set:

	agg, err := tally.AggregateBallots(candidates, approvals)

Empty ballots, repeated voters and unknown candidates are rejected with
ErrEmptyApproval, ErrDuplicateVoter and ErrUnknownCandidate. Candidate ids
may not contain the unit separator byte 0x1f (ErrInvalidCandidate).

# Tallying

	res, err := tally.Tally(seats, agg.Ballots, agg.Index)

Tally returns ErrInvalidSeats when seats < 1. Otherwise the result is always
usable; check res.Outcome():

  - Complete: every seat has a winner
  - InsufficientBallots: ballots ran out before the seats were filled
  - UnresolvedTie: more candidates tied for the last seats than remain;
    res.Tie lists them and none of them is seated

Weights are math/big rationals, so a tie is an exact tie and results do not
depend on summation order. res.Rounds holds the full trace: one entry per
winner with the ballot snapshot taken before the round was decided.

# Reporting

	tally.Summary(res, labels)        // "The winners are A and B."
	tally.DescribeRounds(res, labels) // one line per round
	tally.WinnerOverlap(res.Winners, agg.Index)

# Counterfactuals

	cf, err := tally.ExplainCounterfactual(res.Rounds, seats, candidate)
	tally.DescribeCounterfactual(cf, labels)

For each seat the candidate missed, this reports the winners' total in that
round, the candidate's total, and how many extra whole votes a strict win
would have taken. Votes for later seats must come from voters who approved
none of the earlier winners.

All functions are pure and safe to call concurrently on distinct inputs.
*/
package tally
