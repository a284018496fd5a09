package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const createEntries = `CREATE TABLE IF NOT EXISTS entries (
	id         VARCHAR PRIMARY KEY,
	field      VARCHAR NOT NULL,
	geo_json   VARCHAR NOT NULL,
	type       VARCHAR NOT NULL,
	address    VARCHAR NOT NULL,
	created_at TIMESTAMP NOT NULL
)`

// DuckDBEntryStore keeps entries in a DuckDB table.
type DuckDBEntryStore struct {
	db *sql.DB
}

// NewDuckDBEntryStore creates the entries table if needed. The store owns
// conn and closes it on Close.
func NewDuckDBEntryStore(ctx context.Context, conn *sql.DB) (*DuckDBEntryStore, error) {
	if _, err := conn.ExecContext(ctx, createEntries); err != nil {
		return nil, fmt.Errorf("create entries table: %w", err)
	}
	return &DuckDBEntryStore{db: conn}, nil
}

// Put stores e.
func (s *DuckDBEntryStore) Put(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, field, geo_json, type, address, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Field, e.GeoJSON, e.Type, e.Address, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", e.ID, err)
	}
	return nil
}

// Get returns an entry by ID.
func (s *DuckDBEntryStore) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, field, geo_json, type, address, created_at FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %q", ErrEntryNotFound, id)
	}
	return e, err
}

// List returns a page of entries, newest first.
func (s *DuckDBEntryStore) List(ctx context.Context, offset, limit int) ([]Entry, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM entries`).Scan(&total); err != nil {
		return nil, 0, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = total
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, field, geo_json, type, address, created_at FROM entries
		 ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// Close closes the database.
func (s *DuckDBEntryStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(r scanner) (Entry, error) {
	var e Entry
	if err := r.Scan(&e.ID, &e.Field, &e.GeoJSON, &e.Type, &e.Address, &e.CreatedAt); err != nil {
		return Entry{}, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}
