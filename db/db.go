package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS eeprom (
	addr  INTEGER PRIMARY KEY CHECK(addr >= 0),
	value INTEGER NOT NULL CHECK(value BETWEEN 0 AND 255)
);
CREATE TABLE IF NOT EXISTS safety_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	at         TEXT NOT NULL,
	kind       TEXT NOT NULL,
	triple     INTEGER NOT NULL,
	inlet_cx10 INTEGER NOT NULL,
	to_clear   INTEGER NOT NULL,
	until      TEXT
);
`

// Open opens the sqlite database at path and creates any missing tables.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	conn.SetMaxOpenConns(1)

	if err := ApplySchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	log.Info().Str("path", path).Msg("Database ready")
	return conn, nil
}

func ApplySchema(conn *sql.DB) error {
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
