// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/approvalvote/auth"
	"github.com/danielhkuo/approvalvote/models"
	"github.com/danielhkuo/approvalvote/testutil"
)

// TestConcurrentBallotSubmissions verifies that simultaneous ballots from
// different voters are all stored exactly once
func TestConcurrentBallotSubmissions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	votingHandler := NewVotingHandler(db, cfg)

	pollID, _, slug := testutil.CreateTestPoll(t, db, cfg, models.StatusOpen)
	opts := []string{
		testutil.AddTestOption(t, db, pollID, "Option A"),
		testutil.AddTestOption(t, db, pollID, "Option B"),
		testutil.AddTestOption(t, db, pollID, "Option C"),
	}

	numVoters := 10
	voterTokens := make([]string, numVoters)
	for i := range numVoters {
		voterTokens[i] = testutil.CreateTestVoter(t, db, pollID, "ConcurrentVoter"+strconv.Itoa(i))
	}

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := range numVoters {
		wg.Add(1)
		go func(voterIdx int) {
			defer wg.Done()

			// Each voter approves one or two options
			approvals := []string{opts[voterIdx%3]}
			if voterIdx%2 == 0 {
				approvals = append(approvals, opts[(voterIdx+1)%3])
			}

			req := testutil.MakeRequest("POST", "/polls/"+slug+"/ballots", models.SubmitBallotRequest{Approvals: approvals}, map[string]string{
				"X-Voter-Token": voterTokens[voterIdx],
			})
			req.SetPathValue("slug", slug)
			w := httptest.NewRecorder()

			votingHandler.SubmitBallot(w, req)

			if w.Code == http.StatusCreated {
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	if int(successCount.Load()) != numVoters {
		t.Errorf("Expected %d successful submissions, got %d", numVoters, successCount.Load())
	}

	var ballotCount, uniqueVoters int
	err := db.QueryRow("SELECT COUNT(*), COUNT(DISTINCT voter_token) FROM ballot WHERE poll_id = $1", pollID).Scan(&ballotCount, &uniqueVoters)
	if err != nil {
		t.Fatalf("Failed to count ballots: %v", err)
	}
	if ballotCount != numVoters {
		t.Errorf("Expected %d ballots in database, got %d", numVoters, ballotCount)
	}
	if uniqueVoters != numVoters {
		t.Errorf("Expected %d unique voters, got %d (possible duplicates)", numVoters, uniqueVoters)
	}

	// Even voters approved two options, odd voters one
	var approvalCount int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM approval a JOIN ballot b ON b.id = a.ballot_id WHERE b.poll_id = $1
	`, pollID).Scan(&approvalCount)
	if err != nil {
		t.Fatalf("Failed to count approvals: %v", err)
	}
	if approvalCount != 15 {
		t.Errorf("Expected 15 approvals, got %d", approvalCount)
	}
}

// TestConcurrentUsernameClaims verifies that when several goroutines claim the
// same username, exactly one succeeds
func TestConcurrentUsernameClaims(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	votingHandler := NewVotingHandler(db, cfg)

	pollID, _, slug := testutil.CreateTestPoll(t, db, cfg, models.StatusOpen)

	contestedUsername := "RaceConditionUser"
	numAttempts := 5

	var successCount, conflictCount atomic.Int32
	var wg sync.WaitGroup

	for range numAttempts {
		wg.Add(1)
		go func() {
			defer wg.Done()

			w := claimUsername(t, votingHandler, slug, contestedUsername)
			switch w.Code {
			case http.StatusCreated:
				successCount.Add(1)
			case http.StatusConflict:
				conflictCount.Add(1)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("Expected exactly 1 successful claim, got %d", successCount.Load())
	}
	if conflictCount.Load() != int32(numAttempts-1) {
		t.Errorf("Expected %d conflicts, got %d", numAttempts-1, conflictCount.Load())
	}

	var claimCount int
	err := db.QueryRow("SELECT COUNT(*) FROM username_claim WHERE poll_id = $1 AND username = $2",
		pollID, contestedUsername).Scan(&claimCount)
	if err != nil {
		t.Fatalf("Failed to count claims: %v", err)
	}
	if claimCount != 1 {
		t.Errorf("Expected 1 username claim in database, got %d", claimCount)
	}
}

// TestConcurrentPollClose verifies that concurrent closes produce exactly one
// snapshot and one successful response
func TestConcurrentPollClose(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	pollHandler := NewPollHandler(db, cfg)

	pollID, adminKey, _ := testutil.CreateTestPoll(t, db, cfg, models.StatusOpen)
	optA := testutil.AddTestOption(t, db, pollID, "A")
	testutil.AddTestOption(t, db, pollID, "B")
	testutil.CastTestVotes(t, db, pollID, "voter", 3, []string{optA})

	numAttempts := 3
	var successCount atomic.Int32
	var wg sync.WaitGroup

	for range numAttempts {
		wg.Add(1)
		go func() {
			defer wg.Done()

			w := closePoll(t, pollHandler, pollID, adminKey)
			if w.Code == http.StatusOK {
				successCount.Add(1)
			} else if w.Code != http.StatusConflict {
				t.Errorf("Expected 200 or 409, got %d: %s", w.Code, w.Body.String())
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("Expected exactly one successful close, got %d", successCount.Load())
	}

	var status string
	if err := db.QueryRow("SELECT status FROM poll WHERE id = $1", pollID).Scan(&status); err != nil {
		t.Fatalf("Failed to query poll status: %v", err)
	}
	if status != models.StatusClosed {
		t.Errorf("Expected poll status 'closed', got '%s'", status)
	}

	var snapshotCount int
	err := db.QueryRow("SELECT COUNT(*) FROM result_snapshot WHERE poll_id = $1", pollID).Scan(&snapshotCount)
	if err != nil {
		t.Fatalf("Failed to count snapshots: %v", err)
	}
	if snapshotCount != 1 {
		t.Errorf("Expected exactly 1 snapshot, got %d", snapshotCount)
	}
}

// TestConcurrentCloseAndSubmit verifies that ballots racing a close are either
// counted in the snapshot or rejected, never stored afterwards
func TestConcurrentCloseAndSubmit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	pollHandler := NewPollHandler(db, cfg)
	votingHandler := NewVotingHandler(db, cfg)

	pollID, adminKey, slug := testutil.CreateTestPoll(t, db, cfg, models.StatusOpen)
	optA := testutil.AddTestOption(t, db, pollID, "A")
	testutil.AddTestOption(t, db, pollID, "B")
	testutil.CastTestVotes(t, db, pollID, "early", 2, []string{optA})

	numVoters := 8
	tokens := make([]string, numVoters)
	for i := range numVoters {
		tokens[i] = testutil.CreateTestVoter(t, db, pollID, "late"+strconv.Itoa(i))
	}

	var accepted atomic.Int32
	var wg sync.WaitGroup

	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()

			w := submitBallot(t, votingHandler, slug, token, models.SubmitBallotRequest{Approvals: []string{optA}})
			switch w.Code {
			case http.StatusCreated:
				accepted.Add(1)
			case http.StatusConflict:
			default:
				t.Errorf("Expected 201 or 409, got %d: %s", w.Code, w.Body.String())
			}
		}(token)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		w := closePoll(t, pollHandler, pollID, adminKey)
		if w.Code != http.StatusOK {
			t.Errorf("Expected close to succeed, got %d: %s", w.Code, w.Body.String())
		}
	}()

	wg.Wait()

	var ballotCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM ballot WHERE poll_id = $1", pollID).Scan(&ballotCount); err != nil {
		t.Fatalf("Failed to count ballots: %v", err)
	}
	if want := 2 + int(accepted.Load()); ballotCount != want {
		t.Errorf("Expected %d stored ballots, got %d", want, ballotCount)
	}

	var payload string
	err := db.QueryRow("SELECT payload FROM result_snapshot WHERE poll_id = $1", pollID).Scan(&payload)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	var snapshot models.ResultSnapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}

	in, err := loadPollInputs(db, pollID)
	if err != nil {
		t.Fatalf("Failed to load ballots: %v", err)
	}
	if got := auth.HashInputs(in.Ballots); got != snapshot.InputsHash {
		t.Errorf("Stored ballots no longer match the snapshot: hash %s, snapshot %s", got, snapshot.InputsHash)
	}
}

func TestLockOpenPoll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()

	tests := []struct {
		status string
		want   bool
	}{
		{models.StatusDraft, false},
		{models.StatusOpen, true},
		{models.StatusClosed, false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			pollID, _, _ := testutil.CreateTestPoll(t, db, cfg, tt.status)

			tx, err := db.Begin()
			if err != nil {
				t.Fatalf("Failed to begin transaction: %v", err)
			}
			defer tx.Rollback()

			got, err := lockOpenPoll(tx, pollID)
			if err != nil {
				t.Fatalf("lockOpenPoll() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("lockOpenPoll() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestConcurrentBallotUpdates verifies that a voter replacing their ballot
// from several goroutines ends with exactly one ballot
func TestConcurrentBallotUpdates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	votingHandler := NewVotingHandler(db, cfg)

	pollID, _, slug := testutil.CreateTestPoll(t, db, cfg, models.StatusOpen)
	opt1 := testutil.AddTestOption(t, db, pollID, "A")
	opt2 := testutil.AddTestOption(t, db, pollID, "B")

	voterToken := testutil.CreateTestVoter(t, db, pollID, "UpdaterVoter")
	testutil.SubmitTestBallot(t, db, pollID, voterToken, []string{opt1, opt2})

	numUpdates := 10
	var wg sync.WaitGroup

	for i := range numUpdates {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			approvals := []string{opt1}
			if idx%2 == 1 {
				approvals = []string{opt2}
			}
			submitBallot(t, votingHandler, slug, voterToken, models.SubmitBallotRequest{Approvals: approvals})
			// Any update may win
		}(i)
	}

	wg.Wait()

	var ballotID string
	var ballotCount int
	err := db.QueryRow("SELECT COUNT(*), MAX(id) FROM ballot WHERE poll_id = $1 AND voter_token = $2",
		pollID, voterToken).Scan(&ballotCount, &ballotID)
	if err != nil {
		t.Fatalf("Failed to count ballots: %v", err)
	}
	if ballotCount != 1 {
		t.Fatalf("Expected 1 ballot after updates, got %d", ballotCount)
	}

	// The surviving ballot holds exactly one of the submitted approvals
	var approvals int
	if err := db.QueryRow("SELECT COUNT(*) FROM approval WHERE ballot_id = $1", ballotID).Scan(&approvals); err != nil {
		t.Fatalf("Failed to count approvals: %v", err)
	}
	if approvals != 1 {
		t.Errorf("Expected 1 approval on the final ballot, got %d", approvals)
	}

	// No approvals were left behind by replaced ballots
	var orphans int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM approval a LEFT JOIN ballot b ON b.id = a.ballot_id WHERE b.id IS NULL
	`).Scan(&orphans)
	if err != nil {
		t.Fatalf("Failed to count orphaned approvals: %v", err)
	}
	if orphans != 0 {
		t.Errorf("Expected no orphaned approvals, got %d", orphans)
	}
}

// TestParallelPolls verifies that the full lifecycle of different polls can
// run side by side
func TestParallelPolls(t *testing.T) {
	t.Parallel()

	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	pollHandler := NewPollHandler(db, cfg)
	votingHandler := NewVotingHandler(db, cfg)

	numPolls := 5
	var wg sync.WaitGroup

	for i := range numPolls {
		wg.Add(1)
		go func(pollIdx int) {
			defer wg.Done()

			req := testutil.MakeRequest("POST", "/polls", models.CreatePollRequest{
				Title:       "Parallel Poll " + strconv.Itoa(pollIdx),
				CreatorName: "Tester",
			}, nil)
			w := httptest.NewRecorder()
			pollHandler.CreatePoll(w, req)
			if w.Code != http.StatusCreated {
				t.Errorf("Poll %d creation failed: %d", pollIdx, w.Code)
				return
			}

			var createResp models.CreatePollResponse
			json.NewDecoder(w.Body).Decode(&createResp)
			pollID, adminKey := createResp.PollID, createResp.AdminKey
			admin := map[string]string{"X-Admin-Key": adminKey}

			var firstOption string
			for j := range 3 {
				req := testutil.MakeRequest("POST", "/polls/"+pollID+"/options", models.AddOptionRequest{
					Label: "Option " + strconv.Itoa(j),
				}, admin)
				req.SetPathValue("id", pollID)
				w := httptest.NewRecorder()
				pollHandler.AddOption(w, req)
				if w.Code != http.StatusCreated {
					t.Errorf("Poll %d option %d failed: %d", pollIdx, j, w.Code)
					return
				}
				if j == 0 {
					var optResp models.AddOptionResponse
					json.NewDecoder(w.Body).Decode(&optResp)
					firstOption = optResp.OptionID
				}
			}

			req = testutil.MakeRequest("POST", "/polls/"+pollID+"/publish", nil, admin)
			req.SetPathValue("id", pollID)
			w = httptest.NewRecorder()
			pollHandler.PublishPoll(w, req)
			if w.Code != http.StatusOK {
				t.Errorf("Poll %d publish failed: %d", pollIdx, w.Code)
				return
			}

			var publishResp models.PublishPollResponse
			json.NewDecoder(w.Body).Decode(&publishResp)
			slug := publishResp.ShareSlug

			w = claimUsername(t, votingHandler, slug, "Voter"+strconv.Itoa(pollIdx))
			if w.Code != http.StatusCreated {
				t.Errorf("Poll %d username claim failed: %d", pollIdx, w.Code)
				return
			}
			var claimResp models.ClaimUsernameResponse
			json.NewDecoder(w.Body).Decode(&claimResp)

			w = submitBallot(t, votingHandler, slug, claimResp.VoterToken, models.SubmitBallotRequest{
				Approvals: []string{firstOption},
			})
			if w.Code != http.StatusCreated {
				t.Errorf("Poll %d ballot failed: %d", pollIdx, w.Code)
				return
			}

			w = closePoll(t, pollHandler, pollID, adminKey)
			if w.Code != http.StatusOK {
				t.Errorf("Poll %d close failed: %d", pollIdx, w.Code)
				return
			}

			var closeResp models.ClosePollResponse
			json.NewDecoder(w.Body).Decode(&closeResp)
			if len(closeResp.Snapshot.Winners) != 1 || closeResp.Snapshot.Winners[0] != firstOption {
				t.Errorf("Poll %d expected winner %s, got %v", pollIdx, firstOption, closeResp.Snapshot.Winners)
			}
		}(i)
	}

	wg.Wait()

	var closed int
	if err := db.QueryRow("SELECT COUNT(*) FROM poll WHERE status = $1", models.StatusClosed).Scan(&closed); err != nil {
		t.Fatalf("Failed to count closed polls: %v", err)
	}
	if closed != numPolls {
		t.Errorf("Expected %d closed polls, got %d", numPolls, closed)
	}
}
