// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connections and schema creation.

# Connecting

Open selects the driver by database type and pings the server:

	conn, err := db.Open(db.TypeSQLite, "file:approvalvote.db")
	conn, err := db.Open(db.TypePostgres, "postgres://...")

PostgreSQL uses github.com/lib/pq and SQLite uses the pure-Go
modernc.org/sqlite driver. SQLite connections turn on foreign keys and
a busy timeout through _pragma DSN parameters.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same SQL runs on both databases, and queries elsewhere use $n
placeholders, which both drivers accept.

# Tables

The schema includes:

  - poll: Poll metadata, seat count and lifecycle state
  - option: Voting options per poll, with winner flag and vote tally
  - username_claim: Maps usernames to voter tokens
  - ballot: One ballot per voter per poll
  - approval: Options approved on a ballot
  - result_snapshot: Immutable tally results (JSON text)

# Relationships

	poll 1──* option
	poll 1──* username_claim
	poll 1──* ballot
	ballot 1──* approval *──1 option
	poll 1──* result_snapshot

All foreign keys use ON DELETE CASCADE.

# Errors

IsUniqueViolation recognizes unique and primary key violations from
either driver, so handlers can map them to 409 Conflict.
*/
package db
