// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides authentication and token generation utilities.

# Admin Keys

Admin keys use HMAC-SHA256 to create deterministic, verifiable keys:

	adminKey := auth.GenerateAdminKey(pollID, salt)
	err := auth.ValidateAdminKey(pollID, adminKey, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same poll ID and salt always produce the same key. This allows validation
without storing the key in the database.

# Voter Tokens

Voter tokens are random 24-byte (192-bit) secrets:

	token, err := auth.GenerateVoterToken()

Tokens are URL-safe base64 encoded and used to authenticate ballot submissions.
Each voter gets a unique token when claiming a username. ValidateVoterToken
rejects malformed tokens before any database lookup.

# Share Slugs

Share slugs create URL-friendly identifiers for published polls:

	slug := auth.GenerateShareSlug(pollID, salt)

Slugs are the first 64 bits of the HMAC in base62 (alphanumeric only). Like
admin keys, they're deterministic from the poll ID and salt.

# ID Generation

Random hex IDs for polls and options:

	id, err := auth.GenerateID(16)  // 32 hex characters

Ballots use random UUIDs and result snapshots use time-ordered UUIDv7
(github.com/google/uuid):

	ballotID := auth.NewBallotID()
	snapshotID, err := auth.NewSnapshotID()

# Inputs Hash

HashInputs fingerprints the ballots a result was computed from, so a stored
snapshot can be checked against the ballots it claims to count:

	hash := auth.HashInputs([]auth.BallotInput{{BallotID: id, Approvals: opts}})

The hash is SHA-256 over the sorted ballots and is independent of input order.

# IP Hashing

For privacy-preserving fraud detection:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
