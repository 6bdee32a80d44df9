package models

import "github.com/google/uuid"

// User is a row of the users table: the wallet and 1v1 rating of a player.
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	IsEphemeral bool      `json:"is_ephemeral"`
	Balance     int64     `json:"balance"`

	// Glicko2 for 1v1, Elo scale
	Elo1v1   int     `json:"elo_1v1"`
	Phi1v1   float64 `json:"phi_1v1"`
	Sigma1v1 float64 `json:"sigma_1v1"`
}
