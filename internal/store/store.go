package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/warriorpoets/league-stats/internal/league"
	"github.com/warriorpoets/league-stats/internal/vault"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps a Postgres connection and persists weekly scores, wagers users,
// their sessions and their encrypted exchange credentials.
type Store struct {
	DB    *sql.DB
	Vault *vault.Vault
}

// Open opens a Postgres connection using the given connection string.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// verify early
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Migrate creates the necessary tables if they do not exist.
func (s *Store) Migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS weekly_points (
		    season TEXT             NOT NULL,
		    member TEXT             NOT NULL,
		    week   INT              NOT NULL,
		    points DOUBLE PRECISION NOT NULL,
		    PRIMARY KEY (season, member, week)
		);`,
		`CREATE TABLE IF NOT EXISTS users (
		    id          SERIAL PRIMARY KEY,
		    yahoo_guid  VARCHAR(255) NOT NULL UNIQUE,
		    yahoo_email VARCHAR(255),
		    yahoo_name  VARCHAR(255),
		    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
		    id            SERIAL PRIMARY KEY,
		    user_id       INT          NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		    session_token VARCHAR(255) NOT NULL UNIQUE,
		    expires_at    TIMESTAMPTZ  NOT NULL,
		    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS kalshi_credentials (
		    id                    SERIAL PRIMARY KEY,
		    user_id               INT  NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		    encrypted_api_key     TEXT NOT NULL,
		    encrypted_private_key TEXT NOT NULL,
		    encryption_iv         TEXT NOT NULL,
		    created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}
	for _, q := range queries {
		if _, err := s.DB.Exec(q); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

// SaveWeeklyPoints upserts every score of a season in one transaction.
// Aggregates are never stored; they are recomputed from these rows.
func (s *Store) SaveWeeklyPoints(ctx context.Context, season string, pts league.WeeklyPoints) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin SaveWeeklyPoints tx: %w", err)
	}
	defer tx.Rollback()

	const q = `
      INSERT INTO weekly_points (season, member, week, points)
      VALUES ($1, $2, $3, $4)
      ON CONFLICT (season, member, week) DO UPDATE SET points = EXCLUDED.points
    `
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("preparing weekly points upsert: %w", err)
	}
	defer stmt.Close()

	for _, member := range league.Members(pts) {
		for week, p := range pts[member] {
			if _, err := stmt.ExecContext(ctx, season, member, week, p); err != nil {
				return fmt.Errorf("saving %s week %d: %w", member, week, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit SaveWeeklyPoints tx: %w", err)
	}
	return nil
}

// LoadWeeklyPoints returns the stored table for a season, empty when nothing
// was saved.
func (s *Store) LoadWeeklyPoints(ctx context.Context, season string) (league.WeeklyPoints, error) {
	const q = `
    SELECT member, week, points
    FROM weekly_points
    WHERE season = $1
    ORDER BY member, week
    `
	rows, err := s.DB.QueryContext(ctx, q, season)
	if err != nil {
		return nil, fmt.Errorf("querying weekly points: %w", err)
	}
	defer rows.Close()

	pts := make(league.WeeklyPoints)
	for rows.Next() {
		var member string
		var week int
		var p float64
		if err := rows.Scan(&member, &week, &p); err != nil {
			return nil, fmt.Errorf("scanning weekly points row: %w", err)
		}
		if pts[member] == nil {
			pts[member] = make(map[int]float64)
		}
		pts[member][week] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating weekly points rows: %w", err)
	}
	return pts, nil
}
