package tokenstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/felixgeelhaar/campus/internal/log"
)

// DefaultFileName is the credentials file inside the campus home directory.
const DefaultFileName = "credentials.json"

// FileStore keeps credentials in a JSON object on disk (mode 0600).
//
// Every call reads the file again so that two campus processes sharing a
// home directory observe each other's logins and logouts.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger *log.Logger
}

// NewFileStore creates a store backed by path. The file is created lazily.
func NewFileStore(path string, logger *log.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: log.OrDefault(logger).WithComponent("tokenstore").With("path", path),
	}
}

// Path returns the credentials file location.
func (s *FileStore) Path() string {
	return s.path
}

// Name identifies the backend.
func (s *FileStore) Name() string {
	return "file"
}

// Get returns a stored value.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.load()
	if !ok {
		return "", false
	}
	v, ok := values[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Set stores a value.
func (s *FileStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.load()
	if !ok {
		values = map[string]string{}
	}
	values[key] = value
	s.save(values)
}

// Remove deletes a value.
func (s *FileStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.load()
	if !ok {
		return
	}
	if _, exists := values[key]; !exists {
		return
	}
	delete(values, key)
	s.save(values)
}

// ClearAll removes every auth key. Non-auth keys survive; when nothing is
// left the file itself is removed.
func (s *FileStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.load()
	if !ok {
		s.removeFile()
		return
	}
	for key := range values {
		if IsAuthKey(key) {
			delete(values, key)
		}
	}
	if len(values) == 0 {
		s.removeFile()
		return
	}
	s.save(values)
}

// Keys lists stored keys in sorted order.
func (s *FileStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, _ := s.load()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *FileStore) load() (map[string]string, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read credentials", "error", err)
		}
		return nil, false
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		s.logger.Warn("ignoring unreadable credentials file", "error", err)
		return nil, false
	}
	return values, true
}

func (s *FileStore) save(values map[string]string) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		s.logger.Error("failed to create credentials directory", "error", err)
		return
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		s.logger.Error("failed to encode credentials", "error", err)
		return
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*.json")
	if err != nil {
		s.logger.Error("failed to write credentials", "error", err)
		return
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		s.logger.Error("failed to write credentials", "error", err)
		return
	}
	if err := tmp.Chmod(0o600); err != nil {
		s.logger.Warn("failed to restrict credentials file mode", "error", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		s.logger.Error("failed to write credentials", "error", err)
		return
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		s.logger.Error("failed to replace credentials file", "error", err)
	}
}

func (s *FileStore) removeFile() {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Error("failed to remove credentials file", "error", err)
	}
}

var _ Store = (*FileStore)(nil)
