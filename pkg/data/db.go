package data

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"
)

// DataFileName is the default sqlite file name under the app home dir.
const DataFileName = "data.db"

var (
	//go:embed sql/*
	f embed.FS

	errDBNotInitialized = errors.New("database not initialized")
)

// Init creates the database file and schema if they do not exist yet.
func Init(dbFilePath string) error {
	if dbFilePath == "" {
		return errors.New("dbFilePath not specified")
	}

	if _, err := os.Stat(dbFilePath); errors.Is(err, os.ErrNotExist) {
		db, err := GetDB(dbFilePath)
		if err != nil {
			return fmt.Errorf("opening database %s: %w", dbFilePath, err)
		}
		defer db.Close()

		slog.Debug("creating db schema")
		b, err := f.ReadFile("sql/ddl.sql")
		if err != nil {
			return fmt.Errorf("reading schema file: %w", err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			return fmt.Errorf("creating schema in %s: %w", dbFilePath, err)
		}
		slog.Debug("db schema created")
	}

	return nil
}

// GetDB opens a connection to the sqlite file at path.
func GetDB(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return conn, nil
}

func rollbackTransaction(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("transaction rollback failed", "error", err)
	}
}
