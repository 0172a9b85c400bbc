// Package store persists scoring conditions and their test cases in SQLite.
// The engine does not trust persisted compiled artifacts: conditions are
// always revalidated from source on load.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cardcity/scoring-go/internal/scoring"
)

// ErrNotFound is returned when a condition id does not exist.
var ErrNotFound = errors.New("store: condition not found")

// Store is a SQLite-backed condition repository.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the store at path. Use ":memory:" for tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// WAL for concurrent readers alongside the writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conditions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			compiled_source TEXT NOT NULL DEFAULT '',
			target_contribution REAL NOT NULL DEFAULT 0,
			is_global INTEGER NOT NULL DEFAULT 0,
			test_cases TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conditions_name ON conditions(name)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Save inserts or replaces a condition. A condition without an ID gets one.
func (s *Store) Save(cond *scoring.ScoringCondition) error {
	if cond.ID == "" {
		cond.ID = uuid.New().String()
	}
	testCases, err := json.Marshal(cond.TestCases)
	if err != nil {
		return fmt.Errorf("failed to encode test cases: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO conditions
			(id, name, description, source, compiled_source, target_contribution, is_global, test_cases, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			source = excluded.source,
			compiled_source = excluded.compiled_source,
			target_contribution = excluded.target_contribution,
			is_global = excluded.is_global,
			test_cases = excluded.test_cases,
			updated_at = excluded.updated_at`,
		cond.ID, cond.Name, cond.Description, cond.Source, cond.CompiledSource,
		cond.TargetContribution, boolToInt(cond.IsGlobal), string(testCases),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save condition: %w", err)
	}
	return nil
}

// Get loads one condition by id. The returned condition is not compiled.
func (s *Store) Get(id string) (*scoring.ScoringCondition, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, source, compiled_source, target_contribution, is_global, test_cases
		FROM conditions WHERE id = ?`, id)
	cond, err := scanCondition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return cond, err
}

// List returns all conditions ordered by name, uncompiled.
func (s *Store) List() ([]*scoring.ScoringCondition, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, source, compiled_source, target_contribution, is_global, test_cases
		FROM conditions ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conditions: %w", err)
	}
	defer rows.Close()

	var conds []*scoring.ScoringCondition
	for rows.Next() {
		cond, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, rows.Err()
}

// Delete removes a condition. Deleting a missing id is ErrNotFound.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM conditions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete condition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadValidated loads all conditions and recompiles each from source.
// Persisted compiled_source is never trusted — an import may have edited
// source underneath it. Conditions that fail validation are returned
// separately with their compile error so the caller can surface them.
func (s *Store) LoadValidated() (valid []*scoring.ScoringCondition, rejected map[string]string, err error) {
	conds, err := s.List()
	if err != nil {
		return nil, nil, err
	}
	rejected = make(map[string]string)
	for _, cond := range conds {
		if res := cond.Compile(); !res.OK {
			rejected[cond.ID] = res.Error
			continue
		}
		valid = append(valid, cond)
	}
	return valid, rejected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCondition(row rowScanner) (*scoring.ScoringCondition, error) {
	var cond scoring.ScoringCondition
	var isGlobal int
	var testCases string
	err := row.Scan(&cond.ID, &cond.Name, &cond.Description, &cond.Source,
		&cond.CompiledSource, &cond.TargetContribution, &isGlobal, &testCases)
	if err != nil {
		return nil, err
	}
	cond.IsGlobal = isGlobal != 0
	if err := json.Unmarshal([]byte(testCases), &cond.TestCases); err != nil {
		return nil, fmt.Errorf("failed to decode test cases for %s: %w", cond.ID, err)
	}
	return &cond, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
