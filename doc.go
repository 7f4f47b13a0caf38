// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the approval voting API server.

Polls elect one or more winners from approval ballots. Each round the most
approved option takes a seat and its surplus passes on to the other options
its voters approved, so a committee reflects more than the largest bloc.

# Starting the Server

The server reads environment variables, a .env file or CLI flags:

	DATABASE_URL=postgres://... go run .

Or with flags, against a local SQLite file:

	go run . -t sqlite -d "file:approvalvote.db" -p 3318

# Configuration

Required settings:

  - DATABASE_URL (-d): PostgreSQL connection string or SQLite file
  - ADMIN_KEY_SALT (-admin-salt): Secret for admin key HMAC
  - POLL_SLUG_SALT (-slug-salt): Secret for share slug generation

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - BASE_URL (-base-url): Frontend origin used in share links
  - LOG_LEVEL (-log-level): debug, info, warn or error
  - -env-file: dotenv file to load first (default: .env)

Logs are text on a terminal and JSON otherwise.

# Architecture

The server uses a handler-based architecture with dependency injection:

  - tally: Ballot aggregation, surplus-transfer tally, narratives, what-if
  - handlers: HTTP request handlers (polls, voting, results)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response types
  - auth: Token generation and validation
  - db: Connection setup and schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
