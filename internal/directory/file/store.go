// Package file is a directory backed by one JSON document per user on a
// filesystem. It serves local development and demos; the document format is
// the same one the backend REST API returns.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/ffland/portal/internal/directory"
	"github.com/ffland/portal/internal/domain"
)

const backend = "file"

// Document is the on-disk shape of a user record.
type Document struct {
	UID               string          `json:"uid"`
	Email             string          `json:"email"`
	CalculatorStorage json.RawMessage `json:"calculatorStorage"`
}

// Store reads <root>/<uid>.json documents from fs.
type Store struct {
	fs   afero.Fs
	root string
}

// NewStore creates a Store rooted at root on fs.
func NewStore(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

var _ domain.Directory = (*Store)(nil)

// UserExists reports whether a document exists for uid.
func (s *Store) UserExists(ctx context.Context, uid string) (bool, error) {
	p, err := s.pathFor(uid)
	if err != nil {
		return false, directory.NewError(backend, "user exists", uid, err)
	}
	ok, err := afero.Exists(s.fs, p)
	if err != nil {
		return false, directory.NewError(backend, "user exists", uid, err)
	}
	return ok, nil
}

// GetProfile reads the calculator storage from uid's document.
func (s *Store) GetProfile(ctx context.Context, uid string) (domain.Profile, error) {
	p, err := s.pathFor(uid)
	if err != nil {
		return nil, directory.NewError(backend, "get profile", uid, err)
	}

	raw, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, directory.NotFound(backend, "get profile", uid)
		}
		return nil, directory.NewError(backend, "get profile", uid, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, directory.NewError(backend, "get profile", uid, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err))
	}
	if len(doc.CalculatorStorage) == 0 {
		return domain.Profile{}, nil
	}
	profile, err := domain.DecodeProfile(doc.CalculatorStorage)
	if err != nil {
		return nil, directory.NewError(backend, "get profile", uid, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err))
	}
	return profile, nil
}

// Put writes a user document. Used by seeding and tests.
func (s *Store) Put(uid, email string, profile domain.Profile) error {
	p, err := s.pathFor(uid)
	if err != nil {
		return err
	}
	storage, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	doc, err := json.MarshalIndent(Document{UID: uid, Email: email, CalculatorStorage: storage}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, p, doc, 0o644)
}

func (s *Store) pathFor(uid string) (string, error) {
	if uid == "" || strings.ContainsAny(uid, `/\`) || strings.Contains(uid, "..") {
		return "", fmt.Errorf("invalid uid %q", uid)
	}
	return path.Join(s.root, uid+".json"), nil
}
