// Package sqlite persists comparison records in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/davidbz/modelarena/internal/domain"
)

// defaultLimit caps list queries when the caller passes no limit.
const defaultLimit = 100

// Store is a SQLite implementation of domain.ComparisonStore.
type Store struct {
	db *sql.DB
}

var _ domain.ComparisonStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection also
	// keeps :memory: databases from being recreated per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS comparisons (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			prompt TEXT NOT NULL,
			results TEXT NOT NULL,
			user_id TEXT,
			user_email TEXT,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			total_cost_usd REAL NOT NULL DEFAULT 0,
			avg_response_time_ms REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comparisons_session ON comparisons(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_comparisons_user ON comparisons(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_comparisons_completed ON comparisons(completed_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Save writes one complete comparison record and returns its id.
func (s *Store) Save(ctx context.Context, c *domain.Comparison) (string, error) {
	if c == nil {
		return "", errors.New("comparison cannot be nil")
	}

	id := c.ID
	if id == "" {
		id = uuid.New().String()
	}

	results, err := json.Marshal(c.Results)
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}

	query := `INSERT INTO comparisons
		(id, session_id, prompt, results, user_id, user_email,
		 total_tokens, total_cost_usd, avg_response_time_ms, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		id, c.SessionID, c.Prompt, string(results), c.UserID, c.UserEmail,
		c.TotalTokens, c.TotalCostUSD, c.AvgResponseTimeMs, c.CreatedAt, c.CompletedAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert comparison: %w", err)
	}

	return id, nil
}

// FindBySession returns a session's records, newest first.
func (s *Store) FindBySession(ctx context.Context, sessionID string, limit int) ([]*domain.Comparison, error) {
	query := `SELECT id, session_id, prompt, results, user_id, user_email,
		total_tokens, total_cost_usd, avg_response_time_ms, created_at, completed_at
		FROM comparisons WHERE session_id = ? ORDER BY completed_at DESC LIMIT ?`
	return s.queryComparisons(ctx, query, sessionID, clampLimit(limit))
}

// FindAll returns records across all sessions, newest first.
func (s *Store) FindAll(ctx context.Context, limit int) ([]*domain.Comparison, error) {
	query := `SELECT id, session_id, prompt, results, user_id, user_email,
		total_tokens, total_cost_usd, avg_response_time_ms, created_at, completed_at
		FROM comparisons ORDER BY completed_at DESC LIMIT ?`
	return s.queryComparisons(ctx, query, clampLimit(limit))
}

// FindByUser returns one owner's records, newest first.
func (s *Store) FindByUser(ctx context.Context, userID string, limit int) ([]*domain.Comparison, error) {
	query := `SELECT id, session_id, prompt, results, user_id, user_email,
		total_tokens, total_cost_usd, avg_response_time_ms, created_at, completed_at
		FROM comparisons WHERE user_id = ? ORDER BY completed_at DESC LIMIT ?`
	return s.queryComparisons(ctx, query, userID, clampLimit(limit))
}

// FindByID returns one record or domain.ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.Comparison, error) {
	query := `SELECT id, session_id, prompt, results, user_id, user_email,
		total_tokens, total_cost_usd, avg_response_time_ms, created_at, completed_at
		FROM comparisons WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	c, err := scanComparison(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comparison %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteByID removes one record or returns domain.ErrNotFound.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comparisons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comparison: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("comparison %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteByOwner removes every record owned by userID and reports how many.
func (s *Store) DeleteByOwner(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, errors.New("user id cannot be empty")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM comparisons WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete comparisons: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) queryComparisons(ctx context.Context, query string, args ...any) ([]*domain.Comparison, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var comparisons []*domain.Comparison
	for rows.Next() {
		c, scanErr := scanComparison(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		comparisons = append(comparisons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return comparisons, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanComparison(row rowScanner) (*domain.Comparison, error) {
	var c domain.Comparison
	var results string
	var userID, userEmail sql.NullString
	var createdAt, completedAt time.Time

	err := row.Scan(&c.ID, &c.SessionID, &c.Prompt, &results, &userID, &userEmail,
		&c.TotalTokens, &c.TotalCostUSD, &c.AvgResponseTimeMs, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(results), &c.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}

	c.UserID = userID.String
	c.UserEmail = userEmail.String
	c.CreatedAt = createdAt
	c.CompletedAt = completedAt
	return &c, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > defaultLimit {
		return defaultLimit
	}
	return limit
}
