// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the approval voting API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - PollHandler: Poll lifecycle (create, publish, close)
  - VotingHandler: Username claims and approval ballots
  - ResultsHandler: Poll info, sealed results and what-if explanations

Handlers are created via constructor functions that accept *sql.DB and Config:

	pollHandler := handlers.NewPollHandler(db, cfg)

# Poll Lifecycle

Polls progress through three states: draft → open → closed

	POST /polls              → CreatePoll (returns admin_key, seats default to 1)
	POST /polls/{id}/options → AddOption (draft only)
	POST /polls/{id}/publish → PublishPoll (needs more options than seats)
	POST /polls/{id}/close   → ClosePoll (runs the tally, stores the snapshot)

Admin operations require the X-Admin-Key header. ClosePoll moves the poll
out of open with a conditional update, so concurrent closes store exactly
one snapshot.

# Voting Flow

Voters interact via the share slug:

	POST /polls/{slug}/claim-username → ClaimUsername (returns voter_token)
	POST /polls/{slug}/ballots        → SubmitBallot (replaces any earlier ballot)
	GET  /polls/{slug}/my-ballot      → GetMyBallot

Voter operations require the X-Voter-Token header. A ballot is a non-empty
set of option ids.

# Tallying

tally.go bridges the database and package tally:

	in, err := loadPollInputs(tx, pollID)
	res, agg, err := runTally(in, poll.Seats)
	snapshot, err := buildSnapshot(id, pollID, now, in, res, agg)

Each stored ballot counts as one voter. The snapshot keeps every round's
vote totals as floats for display, the live ballot weights of each round
with exact "num/den" weights, plus the exact rational totals of each
option as text.

# Results

Results are sealed until the poll is closed:

	GET /polls/{slug}/results                  → GetResults
	GET /polls/{slug}/results/what-if/{option} → GetCounterfactual

GetCounterfactual re-runs the tally on the frozen ballots and reports, seat
by seat, how many more approvals the option needed.
*/
package handlers
