// Package storage persists normalized records to a per-run sqlite catalog,
// so past runs can be re-exported without re-scraping.
package storage

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"storescout/internal/model"
)

type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS stores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		latitude REAL,
		longitude REAL,
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(name, address, city)
	);
	CREATE INDEX IF NOT EXISTS idx_stores_source ON stores(source);
	CREATE INDEX IF NOT EXISTS idx_stores_coords ON stores(latitude, longitude);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// InsertBatch writes records in chunks of batchSize per transaction,
// ignoring identity-key collisions. Returns the number actually inserted.
func (s *Store) InsertBatch(stores []model.Store, batchSize int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if batchSize <= 0 {
		batchSize = len(stores)
	}

	inserted := 0
	for start := 0; start < len(stores); start += batchSize {
		end := min(start+batchSize, len(stores))
		n, err := s.insertChunk(stores[start:end])
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

func (s *Store) insertChunk(stores []model.Store) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning tx: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO stores
		(name, address, city, state, country, postal_code,
		 latitude, longitude, phone, email, url, source)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("preparing stmt: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, st := range stores {
		res, err := stmt.Exec(
			st.Name, st.Address, st.City, st.State, st.Country, st.PostalCode,
			nullableFloat(st.Latitude), nullableFloat(st.Longitude),
			st.Phone, st.Email, st.URL, st.Source,
		)
		if err != nil {
			continue
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing tx: %w", err)
	}
	return inserted, nil
}

// LoadAll reads every record back in insertion order.
func (s *Store) LoadAll() ([]model.Store, error) {
	rows, err := s.db.Query(`
		SELECT name, address, city, state, country, postal_code,
		       latitude, longitude, phone, email, url, source
		FROM stores ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []model.Store
	for rows.Next() {
		var st model.Store
		var lat, lng sql.NullFloat64
		err := rows.Scan(
			&st.Name, &st.Address, &st.City, &st.State, &st.Country, &st.PostalCode,
			&lat, &lng, &st.Phone, &st.Email, &st.URL, &st.Source,
		)
		if err != nil {
			return nil, err
		}
		if lat.Valid {
			st.Latitude = &lat.Float64
		}
		if lng.Valid {
			st.Longitude = &lng.Float64
		}
		stores = append(stores, st)
	}
	return stores, rows.Err()
}

func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM stores").Scan(&count)
	return count, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
