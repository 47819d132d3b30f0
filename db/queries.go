package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

// ReadEEPROM fills img from the stored bytes. Addresses never written, or
// beyond len(img), are left alone.
func ReadEEPROM(db *sql.DB, img []byte) error {
	rows, err := db.Query(`SELECT addr, value FROM eeprom WHERE addr < ? ORDER BY addr`, len(img))
	if err != nil {
		return fmt.Errorf("failed to query eeprom: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr, value int
		if err := rows.Scan(&addr, &value); err != nil {
			return fmt.Errorf("failed to scan eeprom byte: %w", err)
		}
		img[addr] = byte(value)
	}
	return rows.Err()
}

// GetSafetyEvents returns the most recent events first.
func GetSafetyEvents(db *sql.DB, limit int) ([]model.SafetyEvent, error) {
	rows, err := db.Query(`SELECT id, at, kind, triple, inlet_cx10, to_clear, until FROM safety_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query safety events: %w", err)
	}
	defer rows.Close()

	var events []model.SafetyEvent
	for rows.Next() {
		var (
			e       model.SafetyEvent
			at      string
			toClear int
			until   sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &e.Kind, &e.Triple, &e.InletCx10, &toClear, &until); err != nil {
			return nil, fmt.Errorf("failed to scan safety event: %w", err)
		}
		e.At, _ = time.Parse(time.RFC3339, at)
		e.ToClear = signal.Mask(toClear)
		if until.Valid {
			e.Until, _ = time.Parse(time.RFC3339, until.String)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
