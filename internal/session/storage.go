// Package session owns the auth session: the logged-in profile and the
// bearer token, mirrored into durable storage with an in-memory fallback
// when the durable layer is unavailable.
package session

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Keys persisted by the console. Everything else is transient.
const (
	TokenKey    = "capmis_token"
	SettingsKey = "capmis_system_settings"
)

var ErrNotFound = os.ErrNotExist

type StorageBackend interface {
	Name() string
	Load(key string) (string, error)
	Save(key, value string) error
	Delete(key string) error
}

// FileBackend keeps one file per key under dir.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) *FileBackend {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = os.TempDir()
		}
		dir = filepath.Join(base, "capmis-console")
	}
	return &FileBackend{dir: dir}
}

func (f *FileBackend) Name() string { return "file:" + f.dir }

func (f *FileBackend) Load(key string) (string, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, key))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *FileBackend) Save(key, value string) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.dir, key), []byte(value), 0o600)
}

func (f *FileBackend) Delete(key string) error {
	err := os.Remove(filepath.Join(f.dir, key))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// MemoryBackend is the last-resort store; it survives only the process.
type MemoryBackend struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{m: make(map[string]string)}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Load(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryBackend) Save(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[key] = value
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, key)
	return nil
}

// SelectBackend probes backends in order and returns the first usable one.
// Degradation is silent apart from one log line; a broken durable store must
// not take the console down.
func SelectBackend(log *zap.Logger, backends ...StorageBackend) StorageBackend {
	const probe = "capmis_storage_probe"
	for _, b := range backends {
		if err := b.Save(probe, "ok"); err != nil {
			log.Warn("storage backend unusable", zap.String("backend", b.Name()), zap.Error(err))
			continue
		}
		_ = b.Delete(probe)
		return b
	}
	log.Warn("all storage backends failed, session will not survive restarts")
	return NewMemoryBackend()
}
