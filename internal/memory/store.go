package memory

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// CorruptError reports a memory file that exists but cannot be parsed.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("memory file %s is corrupt (%v); repair or remove it to continue", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// ErrNotFound is returned by Load when a project has no memory yet.
var ErrNotFound = errors.New("no memory for project")

// Store persists ProjectMemory per project. Writes are whole-file rewrites;
// the last writer wins.
type Store interface {
	Load(projectID string) (*ProjectMemory, error) // returns ErrNotFound if absent
	Save(projectID string, m *ProjectMemory) error
	Init(projectID string) *ProjectMemory
}

// ProjectID derives a stable identifier from a project directory.
func ProjectID(projectPath string) string {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		abs = projectPath
	}
	sum := blake3.Sum256([]byte(filepath.Clean(abs)))
	return hex.EncodeToString(sum[:8])
}

// FileStore keeps each project's memory at <root>/<projectID>/memory.json.
type FileStore struct {
	root string
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating memory directory: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// Path returns the memory file for projectID.
func (s *FileStore) Path(projectID string) string {
	return filepath.Join(s.root, projectID, "memory.json")
}

// Load reads and unmarshals a project's memory.
func (s *FileStore) Load(projectID string) (*ProjectMemory, error) {
	path := s.Path(projectID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read memory %s: %w", path, err)
	}
	m := New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	return m, nil
}

// Save writes m atomically via a temp file and rename.
func (s *FileStore) Save(projectID string, m *ProjectMemory) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist memory: %w", err)
	}
	if err := WriteFileAtomic(s.Path(projectID), data); err != nil {
		return fmt.Errorf("failed to persist memory: %w", err)
	}
	return nil
}

// Init returns default memory for a project that has none.
func (s *FileStore) Init(projectID string) *ProjectMemory {
	return New()
}

// WriteFileAtomic writes data to a temp file in path's directory and renames
// it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
