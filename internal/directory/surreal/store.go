// Package surreal is the directory adapter for a SurrealDB user table.
package surreal

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/surrealdb/surrealdb.go"

	"github.com/ffland/portal/internal/directory"
	"github.com/ffland/portal/internal/domain"
)

const backend = "surreal"

// ConnConfig holds what is needed to reach the database.
type ConnConfig struct {
	URL       string
	User      string
	Pass      string
	Namespace string
	Database  string
}

// Connect opens a connection, signs in and selects namespace/database.
func Connect(ctx context.Context, cfg ConnConfig) (*surrealdb.DB, error) {
	slog.DebugContext(ctx, "Connecting to directory database", "event", "db_connect_attempt", "db_url", redactDBURL(cfg.URL))

	conn, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database at %s: %w", redactDBURL(cfg.URL), err)
	}

	if _, err = conn.SignIn(ctx, &surrealdb.Auth{Username: cfg.User, Password: cfg.Pass}); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	if err = conn.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/db: %w", err)
	}

	slog.DebugContext(ctx, "Directory database connection established", "event", "db_connect_success",
		"db_url", redactDBURL(cfg.URL), "namespace", cfg.Namespace, "database", cfg.Database)
	return conn, nil
}

// UserRecord is a row of the user table.
type UserRecord struct {
	UID               string         `json:"uid"`
	Email             string         `json:"email"`
	CalculatorStorage map[string]any `json:"calculatorStorage"`
}

// Store implements domain.Directory on the user table.
type Store struct {
	db *surrealdb.DB
}

// NewStore creates a Store on an open connection.
func NewStore(db *surrealdb.DB) *Store {
	return &Store{db: db}
}

var _ domain.Directory = (*Store)(nil)

// UserExists reports whether a record with uid exists.
func (s *Store) UserExists(ctx context.Context, uid string) (bool, error) {
	rec, err := queryOne[UserRecord](ctx, s.db, "SELECT uid FROM user WHERE uid = $uid LIMIT 1", map[string]any{"uid": uid})
	if err != nil {
		return false, directory.NewError(backend, "user exists", uid, err)
	}
	return rec != nil, nil
}

// GetProfile returns the calculator storage of uid's record.
func (s *Store) GetProfile(ctx context.Context, uid string) (domain.Profile, error) {
	rec, err := queryOne[UserRecord](ctx, s.db, "SELECT * FROM user WHERE uid = $uid LIMIT 1", map[string]any{"uid": uid})
	if err != nil {
		return nil, directory.NewError(backend, "get profile", uid, err)
	}
	if rec == nil {
		return nil, directory.NotFound(backend, "get profile", uid)
	}
	if rec.CalculatorStorage == nil {
		return domain.Profile{}, nil
	}
	return domain.Profile(rec.CalculatorStorage), nil
}

// Put upserts a user record. Used for seeding and tests.
func (s *Store) Put(ctx context.Context, rec UserRecord) error {
	q := "UPSERT user MERGE $data WHERE uid = $uid"
	if _, err := surrealdb.Query[any](ctx, s.db, q, map[string]any{"uid": rec.UID, "data": rec}); err != nil {
		return directory.NewError(backend, "put", rec.UID, err)
	}
	return nil
}

// queryOne runs q and returns the first row of the first statement, or nil.
func queryOne[T any](ctx context.Context, db *surrealdb.DB, q string, params map[string]any) (*T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, q, params)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	rows := (*results)[0].Result
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// redactDBURL returns dbURL with any password replaced.
func redactDBURL(dbURL string) string {
	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	return parsedURL.Redacted()
}
