// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/danielhkuo/approvalvote/auth"
	"github.com/danielhkuo/approvalvote/cliparse"
	"github.com/danielhkuo/approvalvote/db"
	"github.com/danielhkuo/approvalvote/models"
)

// SetupTestDB opens a throwaway SQLite database with the production schema.
// The database is closed and removed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := "file:" + filepath.Join(t.TempDir(), "test.db")
	conn, err := db.Open(db.TypeSQLite, url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  "file:test.db",
		DatabaseType: db.TypeSQLite,
		AdminKeySalt: "test-admin-salt",
		PollSlugSalt: "test-slug-salt",
		BaseURL:      "https://vote.example.com",
	}
}

// CreateTestPoll creates a single-seat poll and returns its ID, admin key and
// share slug. status should be "draft", "open", or "closed".
func CreateTestPoll(t *testing.T, db *sql.DB, cfg cliparse.Config, status string) (pollID, adminKey, shareSlug string) {
	t.Helper()
	return CreateTestPollWithSeats(t, db, cfg, status, 1)
}

// CreateTestPollWithSeats creates a poll electing the given number of winners
func CreateTestPollWithSeats(t *testing.T, db *sql.DB, cfg cliparse.Config, status string, seats int) (pollID, adminKey, shareSlug string) {
	t.Helper()

	pollID, _ = auth.GenerateID(16)
	adminKey = auth.GenerateAdminKey(pollID, cfg.AdminKeySalt)

	var slug *string
	if status == models.StatusOpen || status == models.StatusClosed {
		s := auth.GenerateShareSlug(pollID, cfg.PollSlugSalt)
		slug = &s
		shareSlug = s
	}

	var closedAt *time.Time
	if status == models.StatusClosed {
		now := time.Now()
		closedAt = &now
	}

	_, err := db.Exec(`
		INSERT INTO poll (id, title, description, creator_name, method, seats, status, share_slug, closed_at, created_at)
		VALUES ($1, 'Test Poll', 'A test poll', 'TestUser', $2, $3, $4, $5, $6, $7)
	`, pollID, models.MethodApproval, seats, status, slug, closedAt, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	return pollID, adminKey, shareSlug
}

// SetPollStatus moves a poll to another lifecycle state, assigning a share
// slug when it leaves draft
func SetPollStatus(t *testing.T, db *sql.DB, cfg cliparse.Config, pollID, status string) string {
	t.Helper()

	slug := auth.GenerateShareSlug(pollID, cfg.PollSlugSalt)
	_, err := db.Exec(`UPDATE poll SET status = $1, share_slug = $2 WHERE id = $3`, status, slug, pollID)
	if err != nil {
		t.Fatalf("Failed to update poll status: %v", err)
	}
	return slug
}

// AddTestOption adds an option to a poll and returns the option ID
func AddTestOption(t *testing.T, db *sql.DB, pollID, label string) string {
	t.Helper()

	optionID, _ := auth.GenerateID(12)
	_, err := db.Exec(`
		INSERT INTO option (id, poll_id, label)
		VALUES ($1, $2, $3)
	`, optionID, pollID, label)
	if err != nil {
		t.Fatalf("Failed to create test option: %v", err)
	}

	return optionID
}

// CreateTestVoter claims a username for a poll and returns the voter token
func CreateTestVoter(t *testing.T, db *sql.DB, pollID, username string) string {
	t.Helper()

	voterToken, _ := auth.GenerateVoterToken()
	_, err := db.Exec(`
		INSERT INTO username_claim (poll_id, username, voter_token, created_at)
		VALUES ($1, $2, $3, $4)
	`, pollID, username, voterToken, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test voter: %v", err)
	}

	return voterToken
}

// SubmitTestBallot stores a ballot approving the given options
func SubmitTestBallot(t *testing.T, db *sql.DB, pollID, voterToken string, approvals []string) string {
	t.Helper()

	ballotID := auth.NewBallotID()
	_, err := db.Exec(`
		INSERT INTO ballot (id, poll_id, voter_token, submitted_at)
		VALUES ($1, $2, $3, $4)
	`, ballotID, pollID, voterToken, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test ballot: %v", err)
	}

	for _, optionID := range approvals {
		_, err := db.Exec(`
			INSERT INTO approval (ballot_id, option_id)
			VALUES ($1, $2)
		`, ballotID, optionID)
		if err != nil {
			t.Fatalf("Failed to create test approval: %v", err)
		}
	}

	return ballotID
}

// CastTestVotes creates count voters who all approve the same options
func CastTestVotes(t *testing.T, db *sql.DB, pollID, prefix string, count int, approvals []string) {
	t.Helper()

	for i := 0; i < count; i++ {
		username := prefix + strconv.Itoa(i)
		token := CreateTestVoter(t, db, pollID, username)
		SubmitTestBallot(t, db, pollID, token, approvals)
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
