package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/potooio/herald/internal/types"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notification_preferences (
		user_id TEXT PRIMARY KEY,
		enabled INTEGER NOT NULL,
		frequency TEXT NOT NULL,
		event_types TEXT NOT NULL DEFAULT '{}',
		updated_at INTEGER NOT NULL
	)`,
}

// SQLiteStore persists preferences and users in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// OpenSQLite opens (creating if needed) the database at dsn and applies the schema.
// A dsn of ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, logger *zap.Logger, dsn string) (*SQLiteStore, error) {
	memory := strings.Contains(dsn, ":memory:")
	if !memory && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	logger = logger.Named("sqlite-store")
	logger.Info("Database initialized", zap.String("dsn", dsn))
	return &SQLiteStore{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get implements types.PreferenceStore.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (*types.NotificationPreferences, error) {
	var (
		enabled   bool
		frequency string
		raw       string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled, frequency, event_types FROM notification_preferences WHERE user_id = ?`,
		userID,
	).Scan(&enabled, &frequency, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preferences for %s: %w", userID, err)
	}

	prefs := &types.NotificationPreferences{
		Enabled:   enabled,
		Frequency: types.Frequency(frequency),
	}
	if err := json.Unmarshal([]byte(raw), &prefs.EventTypes); err != nil {
		return nil, fmt.Errorf("decode event types for %s: %w", userID, err)
	}
	return prefs, nil
}

// Update implements types.PreferenceStore.
func (s *SQLiteStore) Update(ctx context.Context, userID string, prefs types.NotificationPreferences) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if err := prefs.Validate(); err != nil {
		return err
	}
	toggles := prefs.EventTypes
	if toggles == nil {
		toggles = map[types.EventType]bool{}
	}
	raw, err := json.Marshal(toggles)
	if err != nil {
		return fmt.Errorf("encode event types: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (user_id, enabled, frequency, event_types, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			enabled = excluded.enabled,
			frequency = excluded.frequency,
			event_types = excluded.event_types,
			updated_at = excluded.updated_at
	`, userID, prefs.Enabled, string(prefs.Frequency), string(raw), s.now().Unix())
	if err != nil {
		return fmt.Errorf("upsert preferences for %s: %w", userID, err)
	}
	return nil
}

// GetUser implements types.UserDirectory.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*types.User, error) {
	u := types.User{ID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT username, email FROM users WHERE id = ?`, userID,
	).Scan(&u.Username, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user %s: %w", userID, err)
	}
	return &u, nil
}

// PutUser implements UserWriter.
func (s *SQLiteStore) PutUser(ctx context.Context, u types.User) error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			updated_at = excluded.updated_at
	`, u.ID, u.Username, u.Email, s.now().Unix())
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}
