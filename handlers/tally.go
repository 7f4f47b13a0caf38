// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"cmp"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/danielhkuo/approvalvote/auth"
	"github.com/danielhkuo/approvalvote/models"
	"github.com/danielhkuo/approvalvote/tally"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

// pollInputs is everything the tally needs from the database
type pollInputs struct {
	Labels     tally.Labels
	Candidates []tally.CandidateID // every option of the poll, sorted
	Ballots    []auth.BallotInput  // sorted by ballot ID
}

// loadPollInputs reads the options and ballots of a poll
func loadPollInputs(q querier, pollID string) (*pollInputs, error) {
	in := &pollInputs{Labels: tally.Labels{}}

	rows, err := q.Query(`SELECT id, label FROM option WHERE poll_id = $1 ORDER BY id`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	for rows.Next() {
		var id, label string
		if err := rows.Scan(&id, &label); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		in.Labels[tally.CandidateID(id)] = label
		in.Candidates = append(in.Candidates, tally.CandidateID(id))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read options: %w", err)
	}
	rows.Close()

	rows, err = q.Query(`
		SELECT a.ballot_id, a.option_id
		FROM approval a
		JOIN ballot b ON b.id = a.ballot_id
		WHERE b.poll_id = $1
		ORDER BY a.ballot_id, a.option_id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ballotID, optionID string
		if err := rows.Scan(&ballotID, &optionID); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		if n := len(in.Ballots); n > 0 && in.Ballots[n-1].BallotID == ballotID {
			in.Ballots[n-1].Approvals = append(in.Ballots[n-1].Approvals, optionID)
			continue
		}
		in.Ballots = append(in.Ballots, auth.BallotInput{
			BallotID:  ballotID,
			Approvals: []string{optionID},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read approvals: %w", err)
	}

	return in, nil
}

// runTally aggregates the stored ballots, one voter per ballot, and fills seats
func runTally(in *pollInputs, seats int) (*tally.Result, tally.Aggregate, error) {
	approvals := make([]tally.VoterApproval, 0, len(in.Ballots))
	for _, b := range in.Ballots {
		ids := make([]tally.CandidateID, len(b.Approvals))
		for i, id := range b.Approvals {
			ids[i] = tally.CandidateID(id)
		}
		approvals = append(approvals, tally.VoterApproval{
			Voter:    tally.VoterID(b.BallotID),
			Approved: ids,
		})
	}

	agg, err := tally.AggregateBallots(in.Candidates, approvals)
	if err != nil {
		return nil, tally.Aggregate{}, fmt.Errorf("failed to aggregate ballots: %w", err)
	}

	res, err := tally.Tally(seats, agg.Ballots, agg.Index)
	if err != nil {
		return nil, tally.Aggregate{}, fmt.Errorf("failed to tally ballots: %w", err)
	}

	return res, agg, nil
}

// finalTallies returns each candidate's vote total in the last round it was
// still eligible. Winners keep the total they were elected with.
func finalTallies(res *tally.Result) map[tally.CandidateID]*big.Rat {
	tallies := make(map[tally.CandidateID]*big.Rat)
	for _, r := range res.Rounds {
		for c, votes := range r.VoteCounts() {
			tallies[c] = votes
		}
	}
	return tallies
}

func ratFloat(r *big.Rat) float64 {
	f, _ := r.Float64()
	return f
}

func idStrings(ids []tally.CandidateID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// buildSnapshot turns a tally result into the stored result snapshot
func buildSnapshot(id, pollID string, computedAt time.Time, in *pollInputs, res *tally.Result, agg tally.Aggregate) (models.ResultSnapshot, error) {
	snapshot := models.ResultSnapshot{
		ID:            id,
		PollID:        pollID,
		Method:        models.MethodApproval,
		ComputedAt:    computedAt,
		Seats:         res.Seats,
		Outcome:       res.Outcome().String(),
		Winners:       idStrings(res.Winners),
		Summary:       tally.Summary(res, in.Labels),
		Narrative:     tally.DescribeRounds(res, in.Labels),
		WinnerOverlap: tally.WinnerOverlap(res.Winners, agg.Index),
		InputsHash:    auth.HashInputs(in.Ballots),
	}
	if res.Tie != nil {
		snapshot.Tie = &models.TieResult{
			Seat:       res.Tie.Seat,
			Remaining:  res.Tie.Remaining,
			Candidates: idStrings(res.Tie.Candidates),
		}
	}

	tallies := finalTallies(res)
	for _, c := range in.Candidates {
		votes, ok := tallies[c]
		if !ok {
			votes = new(big.Rat)
		}
		seat := slices.Index(res.Winners, c) + 1
		snapshot.Candidates = append(snapshot.Candidates, models.CandidateResult{
			OptionID:  string(c),
			Label:     in.Labels[c],
			Votes:     ratFloat(votes),
			VotesText: votes.RatString(),
			Winner:    seat > 0,
			Seat:      seat,
		})
	}
	// Seated candidates first in seat order, then by votes
	slices.SortStableFunc(snapshot.Candidates, func(a, b models.CandidateResult) int {
		if a.Winner != b.Winner {
			if a.Winner {
				return -1
			}
			return 1
		}
		if a.Winner {
			return cmp.Compare(a.Seat, b.Seat)
		}
		return cmp.Compare(b.Votes, a.Votes)
	})

	for i, g := range tally.GroupRounds(res.Rounds) {
		round := g.Snapshot()
		summary := models.RoundSummary{
			Round:   i + 1,
			Winners: idStrings(g.Winners()),
			Tie:     g.IsTie(),
			Votes:   make(map[string]float64),
		}
		for c, votes := range round.VoteCounts() {
			summary.Votes[string(c)] = ratFloat(votes)
		}
		if round.Transfer != nil {
			summary.Carried = ratFloat(round.Transfer.Carried)
			summary.Discarded = ratFloat(round.Transfer.Discarded)
		}
		ballots, err := json.Marshal(round.Ballots)
		if err != nil {
			return models.ResultSnapshot{}, fmt.Errorf("failed to encode round %d ballots: %w", i+1, err)
		}
		summary.Ballots = ballots
		snapshot.Rounds = append(snapshot.Rounds, summary)
	}

	return snapshot, nil
}

// buildCounterfactual explains what option needed to win a seat
func buildCounterfactual(in *pollInputs, res *tally.Result, option tally.CandidateID) (models.CounterfactualResponse, error) {
	cf, err := tally.ExplainCounterfactual(res.Rounds, res.Seats, option)
	if err != nil {
		return models.CounterfactualResponse{}, err
	}

	resp := models.CounterfactualResponse{
		OptionID:        string(option),
		Label:           in.Labels[option],
		WouldWin:        cf.WouldWin,
		PositionsNeeded: []models.PositionNeeded{},
		Explanation:     tally.DescribeCounterfactual(cf, in.Labels),
	}
	for _, p := range cf.Positions {
		resp.PositionsNeeded = append(resp.PositionsNeeded, models.PositionNeeded{
			Position:       p.Position,
			Winners:        idStrings(p.Winners),
			WinnerVotes:    ratFloat(p.WinnerVotes),
			CandidateVotes: ratFloat(p.CandidateVotes),
			VotesNeeded:    p.VotesNeeded,
			Excluded:       idStrings(p.Excluded),
		})
	}
	return resp, nil
}
