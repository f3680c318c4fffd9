package toml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	dataFileMode = 0o600
	dataDirMode  = 0o700
)

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

// document is a single versioned TOML file guarded by a process-wide lock
// keyed on its absolute path.
type document struct {
	path        string
	kind        string
	tempPattern string
	mu          *sync.RWMutex
}

func newDocument(path, kind string) (document, error) {
	if path == "" {
		return document{}, fmt.Errorf("%s path is empty", kind)
	}

	normalized, err := normalizePath(path, kind)
	if err != nil {
		return document{}, err
	}

	return document{
		path:        normalized,
		kind:        kind,
		tempPattern: "." + kind + "-*.toml.tmp",
		mu:          lockForPath(normalized),
	}, nil
}

// read decodes the file into out. A missing file leaves out untouched.
func (d document) read(out any) error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s file: %w", d.kind, err)
	}

	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s file: %w", d.kind, err)
	}

	return nil
}

func (d document) write(in any) error {
	if err := os.MkdirAll(filepath.Dir(d.path), dataDirMode); err != nil {
		return fmt.Errorf("create %s directory: %w", d.kind, err)
	}

	data, err := toml.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s file: %w", d.kind, err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(d.path), d.tempPattern)
	if err != nil {
		return fmt.Errorf("create temp %s file: %w", d.kind, err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp %s file: %w", d.kind, err)
	}

	if err := tempFile.Chmod(dataFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp %s file: %w", d.kind, err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp %s file: %w", d.kind, err)
	}

	if err := os.Rename(tempName, d.path); err != nil {
		return fmt.Errorf("replace %s file: %w", d.kind, err)
	}

	cleanup = false

	if err := os.Chmod(d.path, dataFileMode); err != nil {
		return fmt.Errorf("chmod %s file: %w", d.kind, err)
	}

	return nil
}

func normalizePath(path, kind string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s path: %w", kind, err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339)
}
