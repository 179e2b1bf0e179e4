package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Mirror keeps timestamped copies of remote series downloads on disk so a
// failed fetch can fall back to the newest good copy.
type Mirror struct {
	dir      string
	maxFiles int
}

// NewMirror creates a Mirror that stores files in dir and keeps at most
// maxFiles per kind.
func NewMirror(dir string, maxFiles int) *Mirror {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Mirror{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Write saves data as <kind>_<unix>.dat and prunes the oldest copies of
// that kind beyond maxFiles.
func (m *Mirror) Write(kind string, data []byte, ts time.Time) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating mirror dir: %w", err)
	}

	path := filepath.Join(m.dir, fmt.Sprintf("%s_%d.dat", kind, ts.Unix()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing mirror file: %w", err)
	}
	return m.prune(kind)
}

// LoadLatest reads the newest copy of kind and the time it was written.
func (m *Mirror) LoadLatest(kind string) ([]byte, time.Time, error) {
	files, err := m.list(kind)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, fmt.Errorf("no mirrored %s data", kind)
	}

	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(m.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading mirror file: %w", err)
	}
	return data, latest.ts, nil
}

type mirrorFile struct {
	name string
	ts   time.Time
}

// list returns the copies of kind, oldest first.
func (m *Mirror) list(kind string) ([]mirrorFile, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing mirror dir: %w", err)
	}

	prefix := kind + "_"
	var files []mirrorFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".dat") {
			continue
		}
		unix, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".dat"), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, mirrorFile{name: name, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})
	return files, nil
}

func (m *Mirror) prune(kind string) error {
	files, err := m.list(kind)
	if err != nil {
		return err
	}
	if len(files) <= m.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-m.maxFiles] {
		if err := os.Remove(filepath.Join(m.dir, f.name)); err != nil {
			return fmt.Errorf("pruning mirror file %s: %w", f.name, err)
		}
	}
	return nil
}
