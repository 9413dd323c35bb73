// Package store persists the last confirmed device snapshot and operator
// preferences in sqlite, so the display has data to show before the first
// poll completes after a restart.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mholland/senville-sync/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshot (
	id INTEGER PRIMARY KEY CHECK(id=1),
	running BOOLEAN NOT NULL,
	mode INTEGER NOT NULL,
	target_temp_c INTEGER NOT NULL,
	indoor_temp_c INTEGER NOT NULL,
	fan_speed INTEGER NOT NULL,
	vertical_swing BOOLEAN NOT NULL,
	horizontal_swing BOOLEAN NOT NULL,
	synchronized_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS preferences (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot overwrites the single stored snapshot wholesale.
func (s *Store) SaveSnapshot(st model.DeviceState, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO snapshot (id, running, mode, target_temp_c, indoor_temp_c, fan_speed, vertical_swing, horizontal_swing, synchronized_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.Running, st.Mode, st.TargetTempC, st.IndoorTempC, st.FanSpeed,
		st.VerticalSwing, st.HorizontalSwing, at.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot and its timestamp, or nil when no
// snapshot has been saved yet.
func (s *Store) LoadSnapshot() (*model.DeviceState, time.Time, error) {
	var st model.DeviceState
	var stamp string
	err := s.db.QueryRow(
		`SELECT running, mode, target_temp_c, indoor_temp_c, fan_speed, vertical_swing, horizontal_swing, synchronized_at FROM snapshot WHERE id = 1`,
	).Scan(&st.Running, &st.Mode, &st.TargetTempC, &st.IndoorTempC, &st.FanSpeed, &st.VerticalSwing, &st.HorizontalSwing, &stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	at, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to parse snapshot timestamp: %w", err)
	}
	return &st, at, nil
}

func (s *Store) SaveUnit(u model.Unit) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO preferences (key, value) VALUES ('unit', ?)`, string(u))
	if err != nil {
		return fmt.Errorf("failed to save unit preference: %w", err)
	}
	return nil
}

// LoadUnit returns the saved unit preference, or "" when none is stored.
func (s *Store) LoadUnit() (model.Unit, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = 'unit'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load unit preference: %w", err)
	}
	return model.Unit(value), nil
}
