// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/approvalvote/auth"
	"github.com/danielhkuo/approvalvote/middleware"
	"github.com/danielhkuo/approvalvote/models"
)

var errPollNotFound = errors.New("poll not found")

const pollColumns = `id, title, description, creator_name, method, seats, status,
		       share_slug, closes_at, closed_at, final_snapshot_id, created_at`

func scanPoll(row *sql.Row) (models.Poll, error) {
	var poll models.Poll
	var description sql.NullString
	err := row.Scan(
		&poll.ID, &poll.Title, &description, &poll.CreatorName,
		&poll.Method, &poll.Seats, &poll.Status, &poll.ShareSlug, &poll.ClosesAt,
		&poll.ClosedAt, &poll.FinalSnapshotID, &poll.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Poll{}, errPollNotFound
	}
	if err != nil {
		return models.Poll{}, fmt.Errorf("failed to query poll: %w", err)
	}
	poll.Description = description.String
	return poll, nil
}

func getPollByID(db *sql.DB, pollID string) (models.Poll, error) {
	return scanPoll(db.QueryRow(`SELECT `+pollColumns+` FROM poll WHERE id = $1`, pollID))
}

func getPollBySlug(db *sql.DB, slug string) (models.Poll, error) {
	return scanPoll(db.QueryRow(`SELECT `+pollColumns+` FROM poll WHERE share_slug = $1`, slug))
}

// getOptions lists a poll's options ordered by ID
func getOptions(db *sql.DB, pollID string) ([]models.Option, error) {
	rows, err := db.Query(`
		SELECT id, poll_id, label, winner, vote_tally
		FROM option
		WHERE poll_id = $1
		ORDER BY id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	options := []models.Option{}
	for rows.Next() {
		var opt models.Option
		if err := rows.Scan(&opt.ID, &opt.PollID, &opt.Label, &opt.Winner, &opt.VoteTally); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

func countBallots(db *sql.DB, pollID string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ballot WHERE poll_id = $1`, pollID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ballots: %w", err)
	}
	return count, nil
}

// writePollError maps a poll lookup error to a response
// lockOpenPoll reports whether the poll is still open as seen by tx. The
// no-op update holds the poll row until tx ends, so a close that commits
// first is observed here and a later close waits for tx.
func lockOpenPoll(tx *sql.Tx, pollID string) (bool, error) {
	result, err := tx.Exec(`
		UPDATE poll SET status = status
		WHERE id = $1 AND status = $2
	`, pollID, models.StatusOpen)
	if err != nil {
		return false, fmt.Errorf("failed to lock poll: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to lock poll: %w", err)
	}
	return n == 1, nil
}

func writePollError(w http.ResponseWriter, err error) {
	if errors.Is(err, errPollNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	slog.Error("failed to query poll", "error", err)
	middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
}

// adminPollID returns the {id} path value once the X-Admin-Key header has
// been validated for it. It writes the error response itself.
func adminPollID(w http.ResponseWriter, r *http.Request, salt string) (string, bool) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return "", false
	}

	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(pollID, adminKey, salt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return "", false
	}
	return pollID, true
}

// shareSlug returns the {slug} path value
func shareSlug(w http.ResponseWriter, r *http.Request) (string, bool) {
	slug := r.PathValue("slug")
	if slug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "slug is required")
		return "", false
	}
	return slug, true
}
