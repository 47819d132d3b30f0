package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
)

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

// WriteEEPROMWithTx upserts one byte per address starting at off.
func WriteEEPROMWithTx(tx *sql.Tx, off int, p []byte) error {
	stmt, err := tx.Prepare(`INSERT INTO eeprom (addr, value) VALUES (?, ?)
		ON CONFLICT(addr) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("prepare eeprom write: %w", err)
	}
	defer stmt.Close()

	for i, b := range p {
		if _, err := stmt.Exec(off+i, int(b)); err != nil {
			return fmt.Errorf("write eeprom byte %d: %w", off+i, err)
		}
	}
	return nil
}

func EraseEEPROM(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`DELETE FROM eeprom`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("erase eeprom: %w", err)
	}
	return tx.Commit()
}

func InsertSafetyEvent(db *sql.DB, e model.SafetyEvent) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("start transaction: %w", err)
	}

	var until *string
	if !e.Until.IsZero() {
		s := e.Until.Format(time.RFC3339)
		until = &s
	}

	res, err := tx.Exec(`INSERT INTO safety_events (at, kind, triple, inlet_cx10, to_clear, until) VALUES (?, ?, ?, ?, ?, ?)`,
		e.At.Format(time.RFC3339), e.Kind, e.Triple, e.InletCx10, int(e.ToClear), until)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("insert safety event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("safety event id: %w", err)
	}
	return id, tx.Commit()
}
