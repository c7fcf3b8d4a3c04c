package sources

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/daniacca/mattercore/internal/matter"
)

// SQLiteSource serves catalog definitions from a SQLite table, one JSON
// blob per declared id. The registry caches what it resolves, so rows are
// read at most once per id.
type SQLiteSource struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) a definitions database.
func OpenSQLite(path string) (*SQLiteSource, error) {
	if path == "" {
		path = "catalog.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS definitions (
		category TEXT NOT NULL,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (category, id)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create definitions table: %w", err)
	}
	return &SQLiteSource{db: db, path: path}, nil
}

// Path returns the database path.
func (s *SQLiteSource) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteSource) Close() error { return s.db.Close() }

// Import validates cfg and replaces every stored definition with it.
func (s *SQLiteSource) Import(ctx context.Context, cfg matter.CatalogConfig) (retErr error) {
	if err := matter.ValidateCatalogConfig(cfg); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM definitions`); err != nil {
		return fmt.Errorf("clear definitions: %w", err)
	}
	insert := func(cat matter.Category, seq int, id string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s %q: %w", cat, id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO definitions(category, id, seq, payload) VALUES(?, ?, ?, ?)`,
			string(cat), id, seq, data); err != nil {
			return fmt.Errorf("insert %s %q: %w", cat, id, err)
		}
		return nil
	}
	for i, tc := range cfg.Types {
		if err := insert(matter.CategoryType, i, tc.ID, tc); err != nil {
			return err
		}
	}
	for i, cc := range cfg.Conditions {
		if err := insert(matter.CategoryCondition, i, cc.ID, cc); err != nil {
			return err
		}
	}
	for i, ch := range cfg.Changes {
		if err := insert(matter.CategoryChange, i, ch.ID, ch); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteSource) load(cat matter.Category, id matter.TypeID, dst any) error {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM definitions WHERE category = ? AND id = ?`,
		string(cat), string(id)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", cat, id, matter.ErrNotDeclared)
	}
	if err != nil {
		return fmt.Errorf("select %s %q: %w", cat, id, err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("decode %s %q: %w", cat, id, err)
	}
	return nil
}

func (s *SQLiteSource) Type(id matter.TypeID) (matter.TypeConfig, error) {
	var tc matter.TypeConfig
	err := s.load(matter.CategoryType, id, &tc)
	return tc, err
}

func (s *SQLiteSource) Condition(id matter.TypeID) (matter.ConditionConfig, error) {
	var cc matter.ConditionConfig
	err := s.load(matter.CategoryCondition, id, &cc)
	return cc, err
}

func (s *SQLiteSource) Change(id matter.TypeID) (matter.ChangeConfig, error) {
	var ch matter.ChangeConfig
	err := s.load(matter.CategoryChange, id, &ch)
	return ch, err
}

func (s *SQLiteSource) IDs(category matter.Category) ([]matter.TypeID, error) {
	rows, err := s.db.Query(`SELECT id FROM definitions WHERE category = ? ORDER BY seq`, string(category))
	if err != nil {
		return nil, fmt.Errorf("select %s ids: %w", category, err)
	}
	defer func() { _ = rows.Close() }()
	var ids []matter.TypeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, matter.TypeID(id))
	}
	return ids, rows.Err()
}

var _ matter.Source = (*SQLiteSource)(nil)
