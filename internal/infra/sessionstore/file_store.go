// Package sessionstore keeps the member session on disk, encrypted, so a
// restarted process resumes without a new sign-in.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/infra/security"
)

const sealLabel = "uplus-loyalty/session/v1"

type storedUser struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type storedSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         *storedUser `json:"user,omitempty"`
}

// FileStore persists one session to path, sealed with enc.
type FileStore struct {
	path string
	enc  *security.EncryptionService
}

func NewFileStore(path string, enc *security.EncryptionService) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session store path is required")
	}
	if enc == nil {
		return nil, errors.New("session store requires an encryption key")
	}
	return &FileStore{path: path, enc: enc}, nil
}

// Load returns domain.ErrNotFound when no session has been saved.
func (f *FileStore) Load(ctx context.Context) (*model.Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	pt, err := f.enc.Open(data, sealLabel)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	var ss storedSession
	if err := json.Unmarshal(pt, &ss); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	s := &model.Session{AccessToken: ss.AccessToken, RefreshToken: ss.RefreshToken, ExpiresAt: ss.ExpiresAt}
	if ss.User != nil {
		s.User = &model.User{ID: ss.User.ID, Email: ss.User.Email, Metadata: ss.User.Metadata, CreatedAt: ss.User.CreatedAt}
	}
	return s, nil
}

// Save writes atomically through a temp file in the same directory.
func (f *FileStore) Save(ctx context.Context, s *model.Session) error {
	if s == nil {
		return f.Clear(ctx)
	}
	ss := storedSession{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, ExpiresAt: s.ExpiresAt}
	if u := s.User; u != nil {
		ss.User = &storedUser{ID: u.ID, Email: u.Email, Metadata: u.Metadata, CreatedAt: u.CreatedAt}
	}
	pt, err := json.Marshal(ss)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ct, err := f.enc.Seal(pt, sealLabel)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("session temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(ct); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
