package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned by Store.Get when a key has never been written.
var ErrNotFound = errors.New("settings: key not found")

// Store defines the interface for settings persistence backends.
// Implementations exist for memory, JSON files, BadgerDB and Redis.
type Store interface {
	// Get retrieves the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases any resources held by the store.
	Close() error
}

// MemoryStore keeps values in a map. Nothing survives a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// FileStore persists each key as <dir>/<key>.json.
type FileStore struct {
	Dir string
}

// NewFileStore creates a file store rooted at dir. The directory is
// created on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("settings: invalid key %q", key)
	}
	return filepath.Join(s.Dir, key+".json"), nil
}

// Get reads the file for key.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Set writes the file for key atomically via a temp file and rename.
func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// Close is a no-op for files.
func (s *FileStore) Close() error { return nil }

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)

// OpenOptions selects and configures a Store for Open.
type OpenOptions struct {
	Kind   string // memory, file, badger, redis
	Dir    string
	Redis  RedisOptions
	Logger *slog.Logger
}

// Open creates the store named by opts.Kind.
func Open(ctx context.Context, opts OpenOptions) (Store, error) {
	switch opts.Kind {
	case "memory":
		return NewMemoryStore(), nil
	case "file", "":
		return NewFileStore(opts.Dir), nil
	case "badger":
		return NewBadgerStore(BadgerOptions{Dir: filepath.Join(opts.Dir, "badger"), Logger: opts.Logger})
	case "redis":
		return NewRedisStore(ctx, opts.Redis)
	default:
		return nil, fmt.Errorf("settings: unknown store %q", opts.Kind)
	}
}
