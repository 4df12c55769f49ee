package governor

import (
	"os"
	"strings"
	"sync"
)

// disabledKey is the single flag the governor persists across reloads
// within a session. Once written, a later boot short-circuits straight to
// the disabled state without re-probing hardware known to fail.
const disabledKey = "governor.disabled"

// SessionStore is session-scoped key/value persistence. The governor
// stores exactly one flag in it (see disabledKey); everything else resets
// on reload.
//
// Implementations must tolerate concurrent use. Store failures are
// non-fatal: the governor logs and continues, since failing to persist a
// fallback flag must never break the fallback itself.
type SessionStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// MemorySessionStore is the default SessionStore. It lives exactly as long
// as the process, which matches session semantics for a long-running host.
type MemorySessionStore struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{m: make(map[string]string)}
}

// Get returns the stored value for key.
func (s *MemorySessionStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Set stores value under key. It never fails.
func (s *MemorySessionStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

// FileSessionStore persists keys as "key=value" lines in a single file,
// for hosts whose sessions outlive the process (restart-on-crash loops).
// It reads the whole file on every Get; the governor touches it once at
// boot and at most once more on escalation, so simplicity wins.
type FileSessionStore struct {
	mu   sync.Mutex
	path string
}

// NewFileSessionStore creates a store backed by the file at path. The file
// is created on first Set.
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// Get returns the stored value for key, or false if the file does not
// exist or has no such key.
func (s *FileSessionStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(data), "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}

// Set stores value under key, rewriting the file.
func (s *FileSessionStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make(map[string]string)
	if data, err := os.ReadFile(s.path); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if k, v, ok := strings.Cut(strings.TrimSpace(line), "="); ok {
				entries[k] = v
			}
		}
	}
	entries[key] = value

	var b strings.Builder
	for k, v := range entries {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte('\n')
	}
	return os.WriteFile(s.path, []byte(b.String()), 0o600)
}
