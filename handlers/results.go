// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/approvalvote/cliparse"
	"github.com/danielhkuo/approvalvote/middleware"
	"github.com/danielhkuo/approvalvote/models"
	"github.com/danielhkuo/approvalvote/tally"
)

type ResultsHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewResultsHandler(db *sql.DB, cfg cliparse.Config) *ResultsHandler {
	return &ResultsHandler{db: db, cfg: cfg}
}

// GetPoll handles GET /polls/:slug
// Returns poll details and options, but NOT results (results are sealed until closed)
func (h *ResultsHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	slug, ok := shareSlug(w, r)
	if !ok {
		return
	}

	poll, err := getPollBySlug(h.db, slug)
	if err != nil {
		writePollError(w, err)
		return
	}

	options, err := getOptions(h.db, poll.ID)
	if err != nil {
		slog.Error("failed to query options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	// Winner flags and tallies stay hidden while voting is open
	if poll.Status != models.StatusClosed {
		for i := range options {
			options[i].Winner = false
			options[i].VoteTally = 0
		}
	}

	middleware.JSONResponse(w, http.StatusOK, models.PollWithOptions{
		Poll:    poll,
		Options: options,
	})
}

// closedPoll resolves {slug} to a closed poll. Results are sealed while the
// poll is open, so anything else gets 403.
func (h *ResultsHandler) closedPoll(w http.ResponseWriter, r *http.Request) (models.Poll, bool) {
	slug, ok := shareSlug(w, r)
	if !ok {
		return models.Poll{}, false
	}

	poll, err := getPollBySlug(h.db, slug)
	if err != nil {
		writePollError(w, err)
		return models.Poll{}, false
	}

	if poll.Status != models.StatusClosed {
		middleware.ErrorResponse(w, http.StatusForbidden, "Results are hidden until poll is closed")
		return models.Poll{}, false
	}
	return poll, true
}

// GetResults handles GET /polls/:slug/results
// Returns 403 if poll is open (results are sealed)
// Returns final snapshot if poll is closed
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	poll, ok := h.closedPoll(w, r)
	if !ok {
		return
	}

	if poll.FinalSnapshotID == nil {
		slog.Error("closed poll has no snapshot", "poll_id", poll.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Results not available")
		return
	}

	var payload []byte
	err := h.db.QueryRow(`
		SELECT payload FROM result_snapshot WHERE id = $1
	`, *poll.FinalSnapshotID).Scan(&payload)
	if err != nil {
		slog.Error("failed to query snapshot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	var snapshot models.ResultSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		slog.Error("failed to parse snapshot payload", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to parse results")
		return
	}

	options, err := getOptions(h.db, poll.ID)
	if err != nil {
		slog.Error("failed to query options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	ballotCount, err := countBallots(h.db, poll.ID)
	if err != nil {
		slog.Error("failed to count ballots for results", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{
		Poll:        poll,
		Options:     options,
		Snapshot:    snapshot,
		BallotCount: ballotCount,
	})
}

// GetCounterfactual handles GET /polls/:slug/results/what-if/:option
// Explains how many more approvals an option needed for each seat it missed.
// Ballots are frozen once a poll closes, so the recomputed tally matches the
// stored snapshot.
func (h *ResultsHandler) GetCounterfactual(w http.ResponseWriter, r *http.Request) {
	poll, ok := h.closedPoll(w, r)
	if !ok {
		return
	}

	optionID := r.PathValue("option")

	in, err := loadPollInputs(h.db, poll.ID)
	if err != nil {
		slog.Error("failed to load ballots", "error", err, "poll_id", poll.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if _, ok := in.Labels[tally.CandidateID(optionID)]; !ok {
		middleware.ErrorResponse(w, http.StatusNotFound, "Option not found")
		return
	}

	res, _, err := runTally(in, poll.Seats)
	if err != nil {
		slog.Error("failed to compute results", "error", err, "poll_id", poll.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to compute results")
		return
	}

	resp, err := buildCounterfactual(in, res, tally.CandidateID(optionID))
	if err != nil {
		slog.Error("failed to explain counterfactual", "error", err, "poll_id", poll.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to compute results")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// GetBallotCount handles GET /polls/:slug/ballot-count
// Returns the number of ballots submitted (visible even while open)
func (h *ResultsHandler) GetBallotCount(w http.ResponseWriter, r *http.Request) {
	slug, ok := shareSlug(w, r)
	if !ok {
		return
	}

	poll, err := getPollBySlug(h.db, slug)
	if err != nil {
		writePollError(w, err)
		return
	}

	count, err := countBallots(h.db, poll.ID)
	if err != nil {
		slog.Error("failed to count ballots", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]int{
		"ballot_count": count,
	})
}

// GetPreview handles GET /polls/:slug/preview
// Returns compact poll data for link previews
func (h *ResultsHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	slug, ok := shareSlug(w, r)
	if !ok {
		return
	}

	poll, err := getPollBySlug(h.db, slug)
	if err != nil {
		writePollError(w, err)
		return
	}

	var optionCount int
	err = h.db.QueryRow(`
		SELECT COUNT(*) FROM option WHERE poll_id = $1
	`, poll.ID).Scan(&optionCount)
	if err != nil {
		slog.Error("failed to count options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	ballotCount, err := countBallots(h.db, poll.ID)
	if err != nil {
		slog.Error("failed to count ballots", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.PollPreviewResponse{
		Title:       poll.Title,
		Status:      poll.Status,
		Seats:       poll.Seats,
		OptionCount: optionCount,
		BallotCount: ballotCount,
	})
}
