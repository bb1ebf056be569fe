package storage

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

var ErrStoragePathRequired = errors.New("storage path not provided")

// FileRepo keeps every entry in a single JSON document on disk, rewriting it on each change.
// With a passphrase the document is sealed before it is written.
type FileRepo struct {
	mu      sync.Mutex
	fs      afero.Fs
	path    string
	entries map[string]entry
	sealer  *sealer
	nowFunc func() time.Time
}

var _ Repo = (*FileRepo)(nil)

type fileDocument struct {
	Entries map[string]entry `json:"entries"`
}

type FileOption func(*FileRepo)

// WithPassphrase enables at-rest encryption of the session file.
func WithPassphrase(passphrase string) FileOption {
	return func(r *FileRepo) {
		if passphrase != "" {
			r.sealer = newSealer(passphrase)
		}
	}
}

func WithFileNowFunc(now func() time.Time) FileOption {
	return func(r *FileRepo) {
		r.nowFunc = now
	}
}

// NewFileRepo opens (or prepares) the session file at path on fs and loads existing entries.
func NewFileRepo(fs afero.Fs, path string, options ...FileOption) (*FileRepo, error) {
	if path == "" {
		return nil, ErrStoragePathRequired
	}
	r := &FileRepo{
		fs:      fs,
		path:    path,
		entries: make(map[string]entry),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewOSFileRepo stores the session file under dir on the real filesystem.
func NewOSFileRepo(dir string, options ...FileOption) (*FileRepo, error) {
	return NewFileRepo(afero.NewOsFs(), filepath.Join(dir, "session.json"), options...)
}

func (r *FileRepo) Get(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	if e.expired(r.nowFunc()) {
		delete(r.entries, key)
		_ = r.saveLocked()
		return "", ErrNotFound
	}
	return e.Value, nil
}

func (r *FileRepo) Set(_ context.Context, key, value string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, existed := r.entries[key]
	r.entries[key] = newEntry(value, ttl, r.nowFunc())
	if err := r.saveLocked(); err != nil {
		if existed {
			r.entries[key] = previous
		} else {
			delete(r.entries, key)
		}
		return err
	}
	return nil
}

func (r *FileRepo) Delete(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range keys {
		delete(r.entries, k)
	}
	return r.saveLocked()
}

func (r *FileRepo) load() error {
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read session file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	if r.sealer != nil {
		if data, err = r.sealer.open(data); err != nil {
			return fmt.Errorf("open session file: %w", err)
		}
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode session file: %w", err)
	}

	now := r.nowFunc()
	for k, e := range doc.Entries {
		if !e.expired(now) {
			r.entries[k] = e
		}
	}
	return nil
}

func (r *FileRepo) saveLocked() error {
	data, err := json.MarshalIndent(fileDocument{Entries: r.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	if r.sealer != nil {
		if data, err = r.sealer.seal(data); err != nil {
			return fmt.Errorf("seal session file: %w", err)
		}
	}

	tmp := fmt.Sprintf("%s.%s.tmp", r.path, randomSuffix())
	if err := afero.WriteFile(r.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := r.fs.Rename(tmp, r.path); err != nil {
		_ = r.fs.Remove(tmp)
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func randomSuffix() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}
