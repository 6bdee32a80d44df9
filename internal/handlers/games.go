package handlers

import (
	"net/http"
	"time"

	"github.com/jason-s-yu/durak/internal/game"
)

// GameSummary is one open game in the /games listing.
type GameSummary struct {
	ID        string        `json:"id"`
	Creator   string        `json:"creator"`
	Settings  game.Settings `json:"settings"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ListGamesHandler lists the games still waiting for a second player, oldest first.
func ListGamesHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		waiting := gs.GameStore.ListGames(game.StatusWaiting)
		out := make([]GameSummary, 0, len(waiting))
		for _, st := range waiting {
			s := GameSummary{ID: st.ID, Settings: st.Settings, CreatedAt: st.CreatedAt}
			if len(st.Players) > 0 {
				s.Creator = st.Players[0].Name
			}
			out = append(out, s)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HealthHandler reports liveness and the number of live games.
func HealthHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"games":  gs.GameStore.Len(),
		})
	}
}
