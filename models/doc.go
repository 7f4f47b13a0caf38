// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreatePollRequest: title, description, creator_name, seats
  - AddOptionRequest: label
  - ClaimUsernameRequest: username
  - SubmitBallotRequest: approvals ([]string of option ids)

# Response Types

Types for JSON responses:

  - CreatePollResponse: poll_id, admin_key
  - AddOptionResponse: option_id
  - PublishPollResponse: share_slug, share_url
  - ClaimUsernameResponse: voter_token
  - SubmitBallotResponse: ballot_id, message
  - MyBallotResponse: the caller's current approvals
  - ClosePollResponse: closed_at, snapshot
  - ResultsResponse: poll, options, snapshot, ballot_count
  - CounterfactualResponse: what an option needed to win
  - ErrorResponse: error, message

# Domain Types

Internal data structures:

  - Poll: poll metadata, seat count and lifecycle state
  - Option: voting option with label, winner flag and vote tally
  - Ballot: voter submission metadata
  - Approval: one approved option on a ballot
  - ResultSnapshot: immutable tally record with rounds and narrative

Vote totals are exact rationals inside the tally package. They are
exposed here as float64 for display, with the exact value kept in
CandidateResult.VotesText.

# Constants

Status values:

	StatusDraft  = "draft"
	StatusOpen   = "open"
	StatusClosed = "closed"

Voting method:

	MethodApproval = "approval"
*/
package models
