package instruments

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tradebridge/internal/models"
)

// SnapshotStore persists the instrument master table to SQLite so a
// restart can serve the last good table without touching the network.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore opens (or creates) the snapshot database.
func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SnapshotStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SnapshotStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS instruments (
		ticker TEXT PRIMARY KEY,
		exchange INTEGER NOT NULL,
		segment INTEGER NOT NULL,
		exchange_name TEXT,
		description TEXT,
		short_name TEXT,
		series TEXT,
		lot_size INTEGER,
		tick_size REAL,
		expiry DATETIME,
		strike REAL,
		option_type TEXT,
		prev_close REAL
	);

	CREATE TABLE IF NOT EXISTS snapshot_meta (
		key TEXT PRIMARY KEY,
		loaded_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save replaces the persisted snapshot wholesale, matching the in-memory
// table's replace-on-refresh semantics.
func (s *SnapshotStore) Save(table map[string]models.InstrumentRecord, loadedAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM instruments`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO instruments
			(ticker, exchange, segment, exchange_name, description, short_name,
			 series, lot_size, tick_size, expiry, strike, option_type, prev_close)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range table {
		if _, err := stmt.Exec(
			rec.Ticker, rec.Exchange, rec.Segment, rec.ExchangeName,
			rec.Description, rec.ShortName, rec.Series, rec.LotSize,
			rec.TickSize, rec.Expiry, rec.Strike, rec.OptionType, rec.PrevClose,
		); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO snapshot_meta (key, loaded_at) VALUES ('instrument_master', ?)
		 ON CONFLICT(key) DO UPDATE SET loaded_at = excluded.loaded_at`,
		loadedAt,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Load restores the persisted snapshot and its load time.
func (s *SnapshotStore) Load() (map[string]models.InstrumentRecord, time.Time, error) {
	var loadedAt time.Time
	err := s.db.QueryRow(
		`SELECT loaded_at FROM snapshot_meta WHERE key = 'instrument_master'`,
	).Scan(&loadedAt)
	if err == sql.ErrNoRows {
		return map[string]models.InstrumentRecord{}, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	rows, err := s.db.Query(`
		SELECT ticker, exchange, segment, exchange_name, description, short_name,
		       series, lot_size, tick_size, expiry, strike, option_type, prev_close
		FROM instruments`)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	table := make(map[string]models.InstrumentRecord)
	for rows.Next() {
		var rec models.InstrumentRecord
		if err := rows.Scan(
			&rec.Ticker, &rec.Exchange, &rec.Segment, &rec.ExchangeName,
			&rec.Description, &rec.ShortName, &rec.Series, &rec.LotSize,
			&rec.TickSize, &rec.Expiry, &rec.Strike, &rec.OptionType, &rec.PrevClose,
		); err != nil {
			return nil, time.Time{}, err
		}
		table[rec.Ticker] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}

	return table, loadedAt, nil
}

// Close closes the underlying database.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
