// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrInvalidToken    = errors.New("invalid token format")
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewBallotID returns a random UUID for a ballot row
func NewBallotID() string {
	return uuid.NewString()
}

// NewSnapshotID returns a time-ordered UUID so snapshots sort by creation
func NewSnapshotID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate snapshot ID: %w", err)
	}
	return id.String(), nil
}

func mac(salt, data string) []byte {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(data))
	return h.Sum(nil)
}

// GenerateAdminKey derives the admin key for a poll. It is deterministic, so
// it never needs to be stored.
func GenerateAdminKey(pollID, salt string) string {
	return base64.RawURLEncoding.EncodeToString(mac(salt, pollID))
}

// ValidateAdminKey checks if the provided admin key is valid for the poll
func ValidateAdminKey(pollID, adminKey, salt string) error {
	expected := GenerateAdminKey(pollID, salt)
	if !hmac.Equal([]byte(adminKey), []byte(expected)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// GenerateVoterToken creates a random 192-bit token identifying one voter in one poll
func GenerateVoterToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate voter token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateVoterToken rejects tokens that could not have come from GenerateVoterToken
func ValidateVoterToken(token string) error {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(b) != 24 {
		return ErrInvalidToken
	}
	return nil
}

// GenerateShareSlug creates a short, deterministic, alphanumeric URL slug for a poll
func GenerateShareSlug(pollID, salt string) string {
	return base62Encode(mac(salt, pollID)[:8])
}

// base62Encode renders data as a base62 number (0-9, a-z, A-Z)
func base62Encode(data []byte) string {
	return new(big.Int).SetBytes(data).Text(62)
}

// HashIP creates a salted one-way hash of an IP address (first 64 bits, hex)
func HashIP(ip, salt string) string {
	return hex.EncodeToString(mac(salt, ip)[:8])
}

// BallotInput is one ballot as fed to the tally
type BallotInput struct {
	BallotID  string
	Approvals []string
}

// HashInputs fingerprints the exact ballots a result was computed from.
// The hash does not depend on ballot or approval order.
func HashInputs(ballots []BallotInput) string {
	lines := make([]string, 0, len(ballots))
	for _, b := range ballots {
		approvals := slices.Clone(b.Approvals)
		slices.Sort(approvals)
		lines = append(lines, b.BallotID+":"+strings.Join(approvals, ","))
	}
	slices.Sort(lines)

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}
