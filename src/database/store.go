package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/username/revoledger/src/logger"
	"github.com/username/revoledger/src/models"
	"github.com/username/revoledger/src/security/validation"
)

var (
	ErrDuplicateFile    = errors.New("file is already loaded")
	ErrNotFound         = errors.New("not found")
	ErrKeyAlreadyPinned = errors.New("row is already part of a manual pair")
)

// Store keeps statement files, their rows and the manual pair overrides.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const rowColumns = `key, type, product, started_at, completed_at, description, amount, fee, currency, state, balance, base_currency, fiat_amount`

// ListRows returns the stored rows ordered by start time then key, optionally filtered by type.
func (s *Store) ListRows(ctx context.Context, types ...models.RowType) ([]models.LedgerRow, error) {
	query := `SELECT ` + rowColumns + ` FROM ledger_rows`
	args := make([]interface{}, 0, len(types))
	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += ` WHERE type IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY started_at, key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying ledger rows: %w", err)
	}
	defer rows.Close()

	result := []models.LedgerRow{}
	for rows.Next() {
		var r models.LedgerRow
		var rowType string
		var product, completed, description, state sql.NullString
		if err := rows.Scan(&r.Key, &rowType, &product, &r.StartedAt, &completed, &description,
			&r.Amount, &r.Fee, &r.Currency, &state, &r.Balance, &r.BaseCurrency, &r.FiatAmount); err != nil {
			return nil, fmt.Errorf("error scanning ledger row: %w", err)
		}
		r.Type = models.RowType(rowType)
		r.Product = product.String
		r.CompletedAt = completed.String
		r.Description = description.String
		r.State = state.String
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}
	rows.Close()

	origins, err := s.rowOrigins(ctx)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].FileIDs = origins[result[i].Key]
	}
	return result, nil
}

func (s *Store) rowOrigins(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT row_key, file_id FROM row_files ORDER BY row_key, file_id`)
	if err != nil {
		return nil, fmt.Errorf("error querying row origins: %w", err)
	}
	defer rows.Close()

	origins := make(map[string][]string)
	for rows.Next() {
		var key, fileID string
		if err := rows.Scan(&key, &fileID); err != nil {
			return nil, fmt.Errorf("error scanning row origin: %w", err)
		}
		origins[key] = append(origins[key], fileID)
	}
	return origins, rows.Err()
}

// InsertFile stores a statement file and its rows in one transaction. Rows already known from
// another file only gain the new file as origin. It returns the number of new and shared rows.
func (s *Store) InsertFile(ctx context.Context, file models.FileRecord, rows []models.LedgerRow) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE hash = ?`, file.Hash).Scan(&existing); err != nil {
		return 0, 0, fmt.Errorf("error checking file hash: %w", err)
	}
	if existing > 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrDuplicateFile, file.Name)
	}

	currencies, err := json.Marshal(file.Currencies)
	if err != nil {
		return 0, 0, fmt.Errorf("error encoding currencies: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO files (id, name, hash, size, row_count, exchanges, from_start_date, to_start_date, currencies, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file.ID, file.Name, file.Hash, file.Size, file.RowCount, file.Exchanges,
		file.FromStartDate, file.ToStartDate, string(currencies), file.UploadedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, 0, fmt.Errorf("error inserting file %s: %w", file.Name, err)
	}

	rowStmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger_rows (`+rowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(key) DO NOTHING`)
	if err != nil {
		return 0, 0, fmt.Errorf("error preparing row insert statement: %w", err)
	}
	defer rowStmt.Close()
	originStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO row_files (row_key, file_id) VALUES (?, ?)`)
	if err != nil {
		return 0, 0, fmt.Errorf("error preparing origin insert statement: %w", err)
	}
	defer originStmt.Close()

	newRows, sharedRows := 0, 0
	for _, r := range rows {
		res, err := rowStmt.ExecContext(ctx, r.Key, string(r.Type), r.Product, r.StartedAt, r.CompletedAt, r.Description,
			r.Amount, r.Fee, r.Currency, r.State, r.Balance, r.BaseCurrency, r.FiatAmount)
		if err != nil {
			return 0, 0, fmt.Errorf("error inserting row %s: %w", r.Key, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			newRows++
		} else {
			sharedRows++
		}
		if _, err := originStmt.ExecContext(ctx, r.Key, file.ID); err != nil {
			return 0, 0, fmt.Errorf("error linking row %s to file: %w", r.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("error committing file %s: %w", file.Name, err)
	}
	logger.Get().Info("Statement file stored", "fileID", file.ID, "name", file.Name, "newRows", newRows, "sharedRows", sharedRows)
	return newRows, sharedRows, nil
}

// DeleteFile removes a file and every row it was the only origin of. Once the last file is gone
// all tables are cleared.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM row_files WHERE file_id = ?`, id)
	if err != nil {
		return fmt.Errorf("error detaching rows from file %s: %w", id, err)
	}
	detached, _ := res.RowsAffected()
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_rows WHERE key NOT IN (SELECT row_key FROM row_files)`); err != nil {
		return fmt.Errorf("error deleting orphaned rows: %w", err)
	}
	res, err = tx.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting file %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: file %s", ErrNotFound, id)
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&remaining); err != nil {
		return fmt.Errorf("error counting files: %w", err)
	}
	if remaining == 0 {
		for _, table := range []string{"row_files", "ledger_rows", "manual_pairs"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("error clearing %s: %w", table, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing file deletion: %w", err)
	}
	logger.Get().Info("Statement file deleted", "fileID", id, "detachedRows", detached, "remainingFiles", remaining)
	return nil
}

func (s *Store) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, hash, size, row_count, exchanges, from_start_date, to_start_date, currencies, uploaded_at
		FROM files ORDER BY uploaded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("error querying files: %w", err)
	}
	defer rows.Close()

	files := []models.FileRecord{}
	for rows.Next() {
		var f models.FileRecord
		var from, to, currencies sql.NullString
		var uploadedAt string
		if err := rows.Scan(&f.ID, &f.Name, &f.Hash, &f.Size, &f.RowCount, &f.Exchanges, &from, &to, &currencies, &uploadedAt); err != nil {
			return nil, fmt.Errorf("error scanning file: %w", err)
		}
		f.FromStartDate, f.ToStartDate = from.String, to.String
		f.Currencies = map[string]int{}
		if currencies.String != "" {
			if err := json.Unmarshal([]byte(currencies.String), &f.Currencies); err != nil {
				return nil, fmt.Errorf("error decoding currencies of file %s: %w", f.ID, err)
			}
		}
		if f.UploadedAt, err = time.Parse(time.RFC3339Nano, uploadedAt); err != nil {
			return nil, fmt.Errorf("error parsing upload time of file %s: %w", f.ID, err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *Store) ListManualPairOverrides(ctx context.Context) ([]models.ManualPairOverride, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, key1, key2, created_at FROM manual_pairs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("error querying manual pairs: %w", err)
	}
	defer rows.Close()

	overrides := []models.ManualPairOverride{}
	for rows.Next() {
		var o models.ManualPairOverride
		var createdAt string
		if err := rows.Scan(&o.ID, &o.Key1, &o.Key2, &createdAt); err != nil {
			return nil, fmt.Errorf("error scanning manual pair: %w", err)
		}
		if o.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("error parsing creation time of manual pair %s: %w", o.ID, err)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// SetManualPair pins two row keys together. Both rows must exist and neither may be pinned already.
func (s *Store) SetManualPair(ctx context.Context, key1, key2 string) (models.ManualPairOverride, error) {
	o := models.ManualPairOverride{
		ID:        uuid.NewString(),
		Key1:      key1,
		Key2:      key2,
		CreatedAt: time.Now().UTC(),
	}
	if err := validation.Struct(o); err != nil {
		return models.ManualPairOverride{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ManualPairOverride{}, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer tx.Rollback()

	var known int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_rows WHERE key IN (?, ?)`, key1, key2).Scan(&known); err != nil {
		return models.ManualPairOverride{}, fmt.Errorf("error checking rows: %w", err)
	}
	if known != 2 {
		return models.ManualPairOverride{}, fmt.Errorf("%w: rows %s / %s", ErrNotFound, key1, key2)
	}

	var pinned int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM manual_pairs WHERE key1 IN (?, ?) OR key2 IN (?, ?)`,
		key1, key2, key1, key2).Scan(&pinned)
	if err != nil {
		return models.ManualPairOverride{}, fmt.Errorf("error checking manual pairs: %w", err)
	}
	if pinned > 0 {
		return models.ManualPairOverride{}, ErrKeyAlreadyPinned
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO manual_pairs (id, key1, key2, created_at) VALUES (?, ?, ?, ?)`,
		o.ID, o.Key1, o.Key2, o.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return models.ManualPairOverride{}, fmt.Errorf("error inserting manual pair: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.ManualPairOverride{}, fmt.Errorf("error committing manual pair: %w", err)
	}
	return o, nil
}

// DeleteManualPairByKey removes the override that contains key.
func (s *Store) DeleteManualPairByKey(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM manual_pairs WHERE key1 = ? OR key2 = ?`, key, key)
	if err != nil {
		return fmt.Errorf("error deleting manual pair: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: no manual pair contains %s", ErrNotFound, key)
	}
	return nil
}

// InvalidateOverride drops an override whose rows no longer form a valid pair.
func (s *Store) InvalidateOverride(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM manual_pairs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("error invalidating manual pair %s: %w", id, err)
	}
	logger.Get().Info("Stale manual pair removed", "id", id)
	return nil
}
