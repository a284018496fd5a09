// Package db opens the DuckDB database that backs the entry store.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Path returns the database file location for cfg.
func (c Config) Path() string {
	return filepath.Join(c.DataDir, "duckdb", c.DBName+".duckdb")
}

// Open opens (creating if needed) the DuckDB database described by cfg.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.DBName == "" {
		cfg.DBName = "geofield"
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path()), 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}

	conn, err := sql.Open("duckdb", cfg.Path())
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %s: %w", cfg.Path(), err)
	}
	return conn, nil
}
