package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/durak/internal/database"
	"github.com/jason-s-yu/durak/internal/models"
	"github.com/sirupsen/logrus"
)

// MaxLeaderboardLimit caps the ?limit query of the leaderboard.
const MaxLeaderboardLimit = 200

// UserReader is the read side of the ledger. *database.Ledger implements it.
type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	Leaderboard(ctx context.Context, limit int) ([]database.LeaderboardEntry, error)
}

// UserHandler returns the wallet and rating of the user in the {id} path segment.
func UserHandler(logger *logrus.Logger, users UserReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}
		u, err := users.GetUser(r.Context(), id)
		if errors.Is(err, database.ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.WithField("user_id", id).Errorf("user lookup failed: %v", err)
			http.Error(w, "failed to load user", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// LeaderboardHandler lists players by 1v1 rating. ?limit defaults to the ledger's own
// default and is capped at MaxLeaderboardLimit.
func LeaderboardHandler(logger *logrus.Logger, users UserReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, MaxLeaderboardLimit)
		}
		board, err := users.Leaderboard(r.Context(), limit)
		if err != nil {
			logger.Errorf("leaderboard failed: %v", err)
			http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
			return
		}
		if board == nil {
			board = []database.LeaderboardEntry{}
		}
		writeJSON(w, http.StatusOK, board)
	}
}
