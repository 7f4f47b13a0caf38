// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/danielhkuo/approvalvote/auth"
	"github.com/danielhkuo/approvalvote/cliparse"
	"github.com/danielhkuo/approvalvote/db"
	"github.com/danielhkuo/approvalvote/middleware"
	"github.com/danielhkuo/approvalvote/models"
	"github.com/danielhkuo/approvalvote/tally"
)

type VotingHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewVotingHandler(db *sql.DB, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{db: db, cfg: cfg}
}

// ClaimUsername handles POST /polls/:slug/claim-username
func (h *VotingHandler) ClaimUsername(w http.ResponseWriter, r *http.Request) {
	slug, ok := shareSlug(w, r)
	if !ok {
		return
	}

	var req models.ClaimUsernameRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Username == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "username is required")
		return
	}
	if n := utf8.RuneCountInString(req.Username); n < 2 || n > 50 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "username must be 2-50 characters")
		return
	}

	poll, err := getPollBySlug(h.db, slug)
	if err != nil {
		writePollError(w, err)
		return
	}
	if poll.Status != models.StatusOpen {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return
	}

	voterToken, err := auth.GenerateVoterToken()
	if err != nil {
		slog.Error("failed to generate voter token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to claim username")
		return
	}

	// UNIQUE (poll_id, username) rejects duplicates
	_, err = h.db.Exec(`
		INSERT INTO username_claim (poll_id, username, voter_token, created_at)
		VALUES ($1, $2, $3, $4)
	`, poll.ID, req.Username, voterToken, time.Now())
	if err != nil {
		if db.IsUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "Username already taken")
			return
		}
		slog.Error("failed to insert username claim", "error", err, "poll_id", poll.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to claim username")
		return
	}

	slog.Info("username claimed", "poll_id", poll.ID, "username", req.Username)

	middleware.JSONResponse(w, http.StatusCreated, models.ClaimUsernameResponse{
		VoterToken: voterToken,
	})
}

// voterPoll resolves the poll for {slug} and checks that the X-Voter-Token
// header belongs to it. It writes the error response itself.
func (h *VotingHandler) voterPoll(w http.ResponseWriter, r *http.Request) (models.Poll, string, bool) {
	slug, ok := shareSlug(w, r)
	if !ok {
		return models.Poll{}, "", false
	}

	voterToken := r.Header.Get("X-Voter-Token")
	if voterToken == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Voter-Token header required")
		return models.Poll{}, "", false
	}
	if err := auth.ValidateVoterToken(voterToken); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid voter token for this poll")
		return models.Poll{}, "", false
	}

	poll, err := getPollBySlug(h.db, slug)
	if err != nil {
		writePollError(w, err)
		return models.Poll{}, "", false
	}

	var exists bool
	err = h.db.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM username_claim
			WHERE poll_id = $1 AND voter_token = $2
		)
	`, poll.ID, voterToken).Scan(&exists)
	if err != nil {
		slog.Error("failed to verify voter token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return models.Poll{}, "", false
	}
	if !exists {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid voter token for this poll")
		return models.Poll{}, "", false
	}

	return poll, voterToken, true
}

// SubmitBallot handles POST /polls/:slug/ballots
// A voter's earlier ballot is deleted and replaced, so each voter holds at
// most one ballot per poll.
func (h *VotingHandler) SubmitBallot(w http.ResponseWriter, r *http.Request) {
	poll, voterToken, ok := h.voterPoll(w, r)
	if !ok {
		return
	}

	var req models.SubmitBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if poll.Status != models.StatusOpen {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return
	}

	approvals := slices.Clone(req.Approvals)
	slices.Sort(approvals)
	approvals = slices.Compact(approvals)
	if len(approvals) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "approvals cannot be empty")
		return
	}

	options, err := getOptions(h.db, poll.ID)
	if err != nil {
		slog.Error("failed to query options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	labels := make(map[string]string, len(options))
	for _, opt := range options {
		labels[opt.ID] = opt.Label
	}
	for _, optionID := range approvals {
		if _, ok := labels[optionID]; !ok {
			middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid option_id: "+optionID)
			return
		}
	}

	ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.AdminKeySalt)
	userAgent := r.UserAgent()

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	stillOpen, err := lockOpenPoll(tx, poll.ID)
	if err != nil {
		slog.Error("failed to recheck poll status", "error", err, "poll_id", poll.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !stillOpen {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return
	}

	var previousID string
	err = tx.QueryRow(`
		SELECT id FROM ballot WHERE poll_id = $1 AND voter_token = $2
	`, poll.ID, voterToken).Scan(&previousID)
	isUpdate := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.Error("failed to query ballot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if isUpdate {
		if _, err := tx.Exec(`DELETE FROM approval WHERE ballot_id = $1`, previousID); err != nil {
			slog.Error("failed to delete old approvals", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update ballot")
			return
		}
		if _, err := tx.Exec(`DELETE FROM ballot WHERE id = $1`, previousID); err != nil {
			slog.Error("failed to delete old ballot", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update ballot")
			return
		}
	}

	ballotID := auth.NewBallotID()
	_, err = tx.Exec(`
		INSERT INTO ballot (id, poll_id, voter_token, submitted_at, ip_hash, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ballotID, poll.ID, voterToken, time.Now(), ipHash, userAgent)
	if err != nil {
		if db.IsUniqueViolation(err) {
			// A concurrent submission from the same voter won
			middleware.ErrorResponse(w, http.StatusConflict, "Ballot was submitted concurrently, retry")
			return
		}
		slog.Error("failed to insert ballot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit ballot")
		return
	}

	approved := make([]string, 0, len(approvals))
	for _, optionID := range approvals {
		_, err = tx.Exec(`
			INSERT INTO approval (ballot_id, option_id)
			VALUES ($1, $2)
		`, ballotID, optionID)
		if err != nil {
			slog.Error("failed to insert approval", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save approvals")
			return
		}
		approved = append(approved, labels[optionID])
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit ballot")
		return
	}

	slog.Info("ballot submitted",
		"poll_id", poll.ID,
		"ballot_id", ballotID,
		"approvals", len(approvals),
		"is_update", isUpdate,
	)

	middleware.JSONResponse(w, http.StatusCreated, models.SubmitBallotResponse{
		BallotID: ballotID,
		Message:  tally.VoteConfirmation(approved),
	})
}

// GetMyBallot handles GET /polls/:slug/my-ballot
func (h *VotingHandler) GetMyBallot(w http.ResponseWriter, r *http.Request) {
	poll, voterToken, ok := h.voterPoll(w, r)
	if !ok {
		return
	}

	var resp models.MyBallotResponse
	err := h.db.QueryRow(`
		SELECT id, submitted_at FROM ballot WHERE poll_id = $1 AND voter_token = $2
	`, poll.ID, voterToken).Scan(&resp.BallotID, &resp.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "No ballot submitted yet")
		return
	}
	if err != nil {
		slog.Error("failed to query ballot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows, err := h.db.Query(`
		SELECT o.id, o.label
		FROM approval a
		JOIN option o ON o.id = a.option_id
		WHERE a.ballot_id = $1
		ORDER BY o.id
	`, resp.BallotID)
	if err != nil {
		slog.Error("failed to query approvals", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	resp.Approvals = []string{}
	var labels []string
	for rows.Next() {
		var id, label string
		if err := rows.Scan(&id, &label); err != nil {
			slog.Error("failed to scan approval", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		resp.Approvals = append(resp.Approvals, id)
		labels = append(labels, label)
	}
	resp.Message = tally.VoteConfirmation(labels)

	middleware.JSONResponse(w, http.StatusOK, resp)
}
