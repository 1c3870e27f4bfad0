package database

import (
	"database/sql"
	"fmt"
	stdlog "log"

	"github.com/username/revoledger/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

const schema = `
	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		hash TEXT NOT NULL UNIQUE,
		size INTEGER NOT NULL DEFAULT 0,
		row_count INTEGER NOT NULL DEFAULT 0,
		exchanges INTEGER NOT NULL DEFAULT 0,
		from_start_date TEXT,
		to_start_date TEXT,
		currencies TEXT,
		uploaded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ledger_rows (
		key TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		product TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		description TEXT,
		amount TEXT NOT NULL,
		fee TEXT NOT NULL,
		currency TEXT NOT NULL,
		state TEXT,
		balance TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_rows_started_at ON ledger_rows (started_at, key);

	CREATE TABLE IF NOT EXISTS row_files (
		row_key TEXT NOT NULL,
		file_id TEXT NOT NULL,
		PRIMARY KEY (row_key, file_id),
		FOREIGN KEY (row_key) REFERENCES ledger_rows(key),
		FOREIGN KEY (file_id) REFERENCES files(id)
	);

	CREATE TABLE IF NOT EXISTS manual_pairs (
		id TEXT PRIMARY KEY,
		key1 TEXT NOT NULL UNIQUE,
		key2 TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);
	`

// InitDB opens the application database and stores it in DB. It exits the process on failure.
func InitDB(databasePath string) {
	db, err := Open(databasePath)
	if err != nil {
		stdlog.Fatalf("failed to initialize database at %s: %v", databasePath, err)
	}
	DB = db
}

// Open opens a sqlite database and brings its schema up to date.
func Open(databasePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}
	// sqlite allows a single writer; one connection also keeps in-memory databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	logger.Get().Info("Checking database migrations", "databasePath", databasePath)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := migrateLedgerRows(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Get().Info("Database tables ensured/created.")
	return db, nil
}

// migrateLedgerRows adds the columns that newer statement exports carry.
func migrateLedgerRows(db *sql.DB) error {
	rows, err := db.Query("PRAGMA table_info(ledger_rows)")
	if err != nil {
		return fmt.Errorf("error querying table schema for ledger_rows: %w", err)
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			return fmt.Errorf("error scanning column info for ledger_rows: %w", err)
		}
		columnExists[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over column info for ledger_rows: %w", err)
	}
	rows.Close()

	migrations := []struct {
		column string
		ddl    string
	}{
		{"base_currency", "ALTER TABLE ledger_rows ADD COLUMN base_currency TEXT NOT NULL DEFAULT ''"},
		{"fiat_amount", "ALTER TABLE ledger_rows ADD COLUMN fiat_amount TEXT"},
	}
	for _, m := range migrations {
		if columnExists[m.column] {
			continue
		}
		if _, err := db.Exec(m.ddl); err != nil {
			return fmt.Errorf("error adding '%s' column to ledger_rows: %w", m.column, err)
		}
		logger.Get().Info("Added column to 'ledger_rows' table", "column", m.column)
	}
	return nil
}
