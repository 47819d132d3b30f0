package db

import (
	"bytes"
	"database/sql"
	"fmt"
	"sync"

	"github.com/thatsimonsguy/packet-thermostat/internal/store"
)

// EEPROM is durable settings memory kept in the eeprom table. Reads are
// served from an in-memory image; writes go through to sqlite for the
// bytes that actually change.
type EEPROM struct {
	db  *sql.DB
	mu  sync.Mutex
	img store.Image
}

func NewEEPROM(db *sql.DB) (*EEPROM, error) {
	img := store.NewImage()
	if err := ReadEEPROM(db, img); err != nil {
		return nil, err
	}
	return &EEPROM{db: db, img: img}, nil
}

func (e *EEPROM) ReadAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.img.ReadAt(p, off)
}

func (e *EEPROM) WriteAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := store.CheckRange(off, len(p), len(e.img)); err != nil {
		return 0, err
	}
	if bytes.Equal(e.img[off:int(off)+len(p)], p) {
		return len(p), nil
	}

	tx, err := StartTransaction(e.db)
	if err != nil {
		return 0, err
	}
	if err := WriteEEPROMWithTx(tx, int(off), p); err != nil {
		RollbackTransaction(tx)
		return 0, err
	}
	if err := CommitTransaction(tx); err != nil {
		return 0, err
	}
	return copy(e.img[off:], p), nil
}

// Snapshot returns a copy of the current contents.
func (e *EEPROM) Snapshot() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return bytes.Clone(e.img)
}

// Erase resets every byte to the unset value.
func (e *EEPROM) Erase() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := EraseEEPROM(e.db); err != nil {
		return fmt.Errorf("erase: %w", err)
	}
	store.Erase(e.img)
	return nil
}
