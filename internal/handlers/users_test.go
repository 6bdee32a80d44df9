package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/durak/internal/database"
	"github.com/jason-s-yu/durak/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	users     map[uuid.UUID]models.User
	board     []database.LeaderboardEntry
	err       error
	lastLimit int
}

func (f *fakeUsers) GetUser(_ context.Context, id uuid.UUID) (models.User, error) {
	if f.err != nil {
		return models.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return models.User{}, database.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) Leaderboard(_ context.Context, limit int) ([]database.LeaderboardEntry, error) {
	f.lastLimit = limit
	return f.board, f.err
}

func newUserRouter(users UserReader) http.Handler {
	logger, _ := test.NewNullLogger()
	r := chi.NewRouter()
	r.Get("/users/{id}", UserHandler(logger, users))
	r.Get("/leaderboard", LeaderboardHandler(logger, users))
	return r
}

func TestUserHandler(t *testing.T) {
	ann := models.User{ID: uuid.New(), Username: "ann", Balance: 120, Elo1v1: 1610}
	router := newUserRouter(&fakeUsers{users: map[uuid.UUID]models.User{ann.ID: ann}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/"+ann.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, ann, got)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserHandlerStoreFailure(t *testing.T) {
	router := newUserRouter(&fakeUsers{err: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestLeaderboardHandler(t *testing.T) {
	entries := []database.LeaderboardEntry{
		{ID: uuid.New(), Username: "bo", Elo: 1700, Wins: 2},
		{ID: uuid.New(), Username: "ann", Elo: 1600, Wins: 1},
	}
	users := &fakeUsers{board: entries}
	router := newUserRouter(users)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got []database.LeaderboardEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, entries, got)
	assert.Zero(t, users.lastLimit)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard?limit=5000", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MaxLeaderboardLimit, users.lastLimit)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaderboardHandlerEmpty(t *testing.T) {
	router := newUserRouter(&fakeUsers{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
