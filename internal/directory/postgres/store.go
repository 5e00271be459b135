// Package postgres is the directory adapter for a Postgres users table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/ffland/portal/internal/directory"
	"github.com/ffland/portal/internal/directory/postgres/migrations"
	"github.com/ffland/portal/internal/domain"
)

const backend = "postgres"

// Open connects to dsn through the pgx database/sql driver and pings it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate users schema: %w", err)
	}
	return nil
}

// Store implements domain.Directory over the users table.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store on an open connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ domain.Directory = (*Store)(nil)

const existsQuery = `SELECT EXISTS (SELECT 1 FROM users WHERE uid = $1)`

// UserExists reports whether uid has a row.
func (s *Store) UserExists(ctx context.Context, uid string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, existsQuery, uid).Scan(&exists); err != nil {
		return false, directory.NewError(backend, "user exists", uid, err)
	}
	return exists, nil
}

const profileQuery = `SELECT calculator_storage FROM users WHERE uid = $1`

// GetProfile reads the calculator_storage column for uid.
func (s *Store) GetProfile(ctx context.Context, uid string) (domain.Profile, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, profileQuery, uid).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.NotFound(backend, "get profile", uid)
		}
		return nil, directory.NewError(backend, "get profile", uid, err)
	}

	p, err := domain.DecodeProfile(raw)
	if err != nil {
		return nil, directory.NewError(backend, "get profile", uid, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err))
	}
	return p, nil
}
