// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the approval voting API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg)

# Endpoints

Health:

	GET /health

Poll management (admin, requires X-Admin-Key):

	POST /polls              - Create poll (title, seats)
	GET  /polls/{id}/admin   - Get poll details
	POST /polls/{id}/options - Add option
	POST /polls/{id}/publish - Open for voting
	POST /polls/{id}/close   - Tally ballots and seal results

Voting (public, uses share slug and X-Voter-Token):

	POST /polls/{slug}/claim-username - Claim voter identity
	POST /polls/{slug}/ballots        - Submit/replace approval ballot
	GET  /polls/{slug}/my-ballot      - Read back own ballot

Results (public):

	GET /polls/{slug}                           - Poll info and options
	GET /polls/{slug}/results                   - Final snapshot (closed only)
	GET /polls/{slug}/results/what-if/{option}  - Votes an option needed (closed only)
	GET /polls/{slug}/ballot-count              - Ballot count
	GET /polls/{slug}/preview                   - Compact preview data

All routes except health and root are wrapped in middleware.WithLogging.
CORS is applied around the whole mux in main.
*/
package router
