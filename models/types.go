// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"encoding/json"
	"time"
)

// Poll status constants
const (
	StatusDraft  = "draft"
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Voting method constants
const (
	MethodApproval = "approval"
)

// Request types

type CreatePollRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatorName string `json:"creator_name"`
	Seats       int    `json:"seats"` // defaults to 1 when omitted
}

type AddOptionRequest struct {
	Label string `json:"label"`
}

type ClaimUsernameRequest struct {
	Username string `json:"username"`
}

// Approvals lists the option ids the voter approves of
type SubmitBallotRequest struct {
	Approvals []string `json:"approvals"`
}

// Response types

type CreatePollResponse struct {
	PollID   string `json:"poll_id"`
	AdminKey string `json:"admin_key"`
}

type AddOptionResponse struct {
	OptionID string `json:"option_id"`
}

type PublishPollResponse struct {
	ShareSlug string `json:"share_slug"`
	ShareURL  string `json:"share_url"`
}

type ClaimUsernameResponse struct {
	VoterToken string `json:"voter_token"`
}

type SubmitBallotResponse struct {
	BallotID string `json:"ballot_id"`
	Message  string `json:"message"`
}

type MyBallotResponse struct {
	BallotID    string    `json:"ballot_id"`
	Approvals   []string  `json:"approvals"`
	SubmittedAt time.Time `json:"submitted_at"`
	Message     string    `json:"message"`
}

type ClosePollResponse struct {
	ClosedAt time.Time      `json:"closed_at"`
	Snapshot ResultSnapshot `json:"snapshot"`
}

type PollPreviewResponse struct {
	Title       string `json:"title"`
	Status      string `json:"status"`
	Seats       int    `json:"seats"`
	OptionCount int    `json:"option_count"`
	BallotCount int    `json:"ballot_count"`
}

type ResultsResponse struct {
	Poll        Poll           `json:"poll"`
	Options     []Option       `json:"options"`
	Snapshot    ResultSnapshot `json:"snapshot"`
	BallotCount int            `json:"ballot_count"`
}

// Domain types

type Poll struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	CreatorName     string     `json:"creator_name"`
	Method          string     `json:"method"`
	Seats           int        `json:"seats"`
	Status          string     `json:"status"`
	ShareSlug       *string    `json:"share_slug,omitempty"`
	ClosesAt        *time.Time `json:"closes_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	FinalSnapshotID *string    `json:"final_snapshot_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Option winner and vote tally are only set once the poll is closed
type Option struct {
	ID        string  `json:"id"`
	PollID    string  `json:"poll_id"`
	Label     string  `json:"label"`
	Winner    bool    `json:"winner"`
	VoteTally float64 `json:"vote_tally"`
}

type PollWithOptions struct {
	Poll    Poll     `json:"poll"`
	Options []Option `json:"options"`
}

type Ballot struct {
	ID          string    `json:"id"`
	PollID      string    `json:"poll_id"`
	VoterToken  string    `json:"-"` // Never expose in JSON
	SubmittedAt time.Time `json:"submitted_at"`
	IPHash      *string   `json:"-"` // Never expose in JSON
	UserAgent   *string   `json:"-"` // Never expose in JSON
}

type Approval struct {
	BallotID string `json:"ballot_id"`
	OptionID string `json:"option_id"`
}

// Tally result types

// CandidateResult is one option's standing in the final tally
type CandidateResult struct {
	OptionID  string  `json:"option_id"`
	Label     string  `json:"label"`
	Votes     float64 `json:"votes"`
	VotesText string  `json:"votes_text"` // exact rational, e.g. "9/5"
	Winner    bool    `json:"winner"`
	Seat      int     `json:"seat,omitempty"` // 1-indexed, 0 when not seated
}

// RoundSummary is one decided round of the tally
type RoundSummary struct {
	Round     int                `json:"round"` // 1-indexed
	Winners   []string           `json:"winners"`
	Tie       bool               `json:"tie"`
	Votes     map[string]float64 `json:"votes"`
	Carried   float64            `json:"carried,omitempty"`
	Discarded float64            `json:"discarded,omitempty"`
	// Ballots lists the live approval sets before the round's decision as
	// [{"approvals": [...], "weight": "num/den"}], ordered by approval set
	Ballots json.RawMessage `json:"ballots"`
}

type TieResult struct {
	Seat       int      `json:"seat"`
	Remaining  int      `json:"remaining"`
	Candidates []string `json:"candidates"`
}

type ResultSnapshot struct {
	ID            string            `json:"id"`
	PollID        string            `json:"poll_id"`
	Method        string            `json:"method"`
	ComputedAt    time.Time         `json:"computed_at"`
	Seats         int               `json:"seats"`
	Outcome       string            `json:"outcome"`
	Winners       []string          `json:"winners"`
	Tie           *TieResult        `json:"tie,omitempty"`
	Candidates    []CandidateResult `json:"candidates"`
	Rounds        []RoundSummary    `json:"rounds"`
	Summary       string            `json:"summary"`
	Narrative     []string          `json:"narrative"`
	WinnerOverlap []int             `json:"winner_overlap"`
	InputsHash    string            `json:"inputs_hash"` // Hash of all ballots for verification
}

// PositionNeeded is what an option lacked to take one seat
type PositionNeeded struct {
	Position       int      `json:"position"`
	Winners        []string `json:"winners"`
	WinnerVotes    float64  `json:"winner_votes"`
	CandidateVotes float64  `json:"candidate_votes"`
	VotesNeeded    int64    `json:"votes_needed"`
	Excluded       []string `json:"excluded"`
}

type CounterfactualResponse struct {
	OptionID        string           `json:"option_id"`
	Label           string           `json:"label"`
	WouldWin        bool             `json:"would_win"`
	PositionsNeeded []PositionNeeded `json:"positions_needed"`
	Explanation     []string         `json:"explanation"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
