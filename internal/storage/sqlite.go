package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sensor-dashboard/internal/config"

	"github.com/mattn/go-sqlite3"
)

const MemoryDatabase = ":memory:"

type SQLiteProvider struct {
	SQLProvider
}

func NewSQLiteProvider(config *config.Storage) (*SQLiteProvider, error) {
	path := config.SQLite.Path
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is empty", ErrNoStorage)
	}

	dsn := path
	if path != MemoryDatabase {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	provider, err := NewSQLProvider("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// A single connection serialises writers, and keeps an in-memory database alive.
	provider.db.SetMaxOpenConns(1)
	provider.isEmailConflict = isSQLiteEmailConflict

	return &SQLiteProvider{SQLProvider: *provider}, nil
}

func isSQLiteEmailConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(sqliteErr.Error(), "users.email")
}
