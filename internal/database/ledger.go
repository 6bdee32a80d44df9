package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/durak/internal/models"
	"github.com/jason-s-yu/durak/internal/rating"
	"github.com/jason-s-yu/durak/internal/settlement"
)

// RatingMode1v1 tags rating rows written by the ledger.
const RatingMode1v1 = "1v1"

// DefaultLeaderboardLimit caps Leaderboard when the caller asks for no limit.
const DefaultLeaderboardLimit = 50

// ErrUserNotFound is returned by GetUser for an id the database has never seen.
var ErrUserNotFound = errors.New("user not found")

// LeaderboardEntry is one row of the 1v1 ranking.
type LeaderboardEntry struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Elo      int       `json:"elo"`
	Wins     int64     `json:"wins"`
}

// TxBeginner is the part of *pgxpool.Pool the ledger needs.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Ledger settles finished matches in Postgres. The settlements row is the
// idempotency key: a match id that is already recorded moves nothing.
type Ledger struct {
	db  TxBeginner
	now func() time.Time
}

func NewLedger(db TxBeginner) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Settle records the result, moves the stake from loser to winner and applies the
// 1v1 rating update, all in one transaction.
func (l *Ledger) Settle(ctx context.Context, req settlement.Request) (settlement.Receipt, error) {
	if err := req.Validate(); err != nil {
		return settlement.Receipt{}, fmt.Errorf("%w: %w", settlement.ErrPermanent, err)
	}

	receipt := settlement.Receipt{MatchID: req.MatchID, GameID: req.GameID, SettledAt: l.now().UTC()}
	err := pgx.BeginTxFunc(ctx, l.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// players may be guests the database has never seen
		for _, id := range []uuid.UUID{req.WinnerID, req.LoserID} {
			if _, err := tx.Exec(ctx, `
				INSERT INTO users (id, username, is_ephemeral)
				VALUES ($1, $2, TRUE)
				ON CONFLICT (id) DO NOTHING
			`, id, guestUsername(id)); err != nil {
				return fmt.Errorf("failed to ensure user %s: %w", id, err)
			}
		}

		settlementID := uuid.New()
		err := tx.QueryRow(ctx, `
			INSERT INTO settlements (id, match_id, game_id, winner_id, loser_id, stake, settled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (match_id) DO NOTHING
			RETURNING id
		`, settlementID, req.MatchID, req.GameID, req.WinnerID, req.LoserID, req.Stake, receipt.SettledAt).Scan(&receipt.SettlementID)
		if errors.Is(err, pgx.ErrNoRows) {
			receipt.Duplicate = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to insert settlement: %w", err)
		}

		winner, loser, err := lockPair(ctx, tx, req.WinnerID, req.LoserID)
		if err != nil {
			return err
		}
		oldW, oldL := userRating(winner), userRating(loser)
		newW, newL := rating.Update1v1(oldW, oldL)

		if err := applyResult(ctx, tx, winner.ID, req.Stake, newW); err != nil {
			return err
		}
		if err := applyResult(ctx, tx, loser.ID, -req.Stake, newL); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO ratings (user_id, match_id, old_rating, new_rating, rating_mode)
			VALUES ($1, $2, $3, $4, $5), ($6, $7, $8, $9, $10)
		`,
			winner.ID, req.MatchID, oldW.Elo, newW.Elo, RatingMode1v1,
			loser.ID, req.MatchID, oldL.Elo, newL.Elo, RatingMode1v1,
		); err != nil {
			return fmt.Errorf("failed to insert rating records: %w", err)
		}

		receipt.WinnerRating = newW.Elo
		receipt.LoserRating = newL.Elo
		return nil
	})
	if err != nil {
		return settlement.Receipt{}, fmt.Errorf("failed to settle match %s (game %s): %w", req.MatchID, req.GameID, err)
	}
	return receipt, nil
}

// lockPair reads both users FOR UPDATE, always in the same id order so concurrent
// settlements between the same players cannot deadlock.
func lockPair(ctx context.Context, tx pgx.Tx, winnerID, loserID uuid.UUID) (models.User, models.User, error) {
	first, second := winnerID, loserID
	if second.String() < first.String() {
		first, second = second, first
	}
	a, err := selectUserForUpdate(ctx, tx, first)
	if err != nil {
		return models.User{}, models.User{}, err
	}
	b, err := selectUserForUpdate(ctx, tx, second)
	if err != nil {
		return models.User{}, models.User{}, err
	}
	if a.ID == winnerID {
		return a, b, nil
	}
	return b, a, nil
}

func selectUserForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (models.User, error) {
	var u models.User
	err := tx.QueryRow(ctx, `
		SELECT id, username, is_ephemeral, balance, elo_1v1, phi_1v1, sigma_1v1
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&u.ID, &u.Username, &u.IsEphemeral, &u.Balance, &u.Elo1v1, &u.Phi1v1, &u.Sigma1v1)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	return u, nil
}

func applyResult(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, r rating.Rating) error {
	_, err := tx.Exec(ctx, `
		UPDATE users
		SET balance = balance + $1, elo_1v1 = $2, phi_1v1 = $3, sigma_1v1 = $4
		WHERE id = $5
	`, delta, r.Elo, r.RD, r.Volatility, id)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", id, err)
	}
	return nil
}

// GetUser returns the wallet and rating row of a player.
func (l *Ledger) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	var u models.User
	err := pgx.BeginTxFunc(ctx, l.db, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			SELECT id, username, is_ephemeral, balance, elo_1v1, phi_1v1, sigma_1v1
			FROM users
			WHERE id = $1
		`, id).Scan(&u.ID, &u.Username, &u.IsEphemeral, &u.Balance, &u.Elo1v1, &u.Phi1v1, &u.Sigma1v1)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	return u, nil
}

// Leaderboard ranks players by 1v1 rating, best first, with their settled wins.
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	var entries []LeaderboardEntry
	err := pgx.BeginTxFunc(ctx, l.db, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT u.id, u.username, u.elo_1v1, COUNT(s.id) AS wins
			FROM users u
			LEFT JOIN settlements s ON s.winner_id = u.id
			GROUP BY u.id
			ORDER BY u.elo_1v1 DESC, wins DESC, u.id
			LIMIT $1
		`, limit)
		if err != nil {
			return err
		}
		entries, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (LeaderboardEntry, error) {
			var e LeaderboardEntry
			err := row.Scan(&e.ID, &e.Username, &e.Elo, &e.Wins)
			return e, err
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return entries, nil
}

func userRating(u models.User) rating.Rating {
	return rating.Rating{Elo: u.Elo1v1, RD: u.Phi1v1, Volatility: u.Sigma1v1}
}

func guestUsername(id uuid.UUID) string {
	return "Guest-" + id.String()[:8]
}
