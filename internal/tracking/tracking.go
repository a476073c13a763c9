// Package tracking persists which bookmarks the user has opted in to
// submitting (tracked.toml) and a local bookmark->PR number cache
// (pr_cache.toml), both under <workspace>/.jj/repo/ryu/. Both files
// are rewritten with a write-to-tempfile-then-rename so an
// interrupted process never leaves a half-written file, the same
// pattern the teacher's LockManager uses for its lock file.
package tracking

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mikkurogue/jj-ryu/internal/graph"
)

const trackedFileVersion = 1

// Record is one tracked bookmark. Identity is ChangeID; Name is
// refreshed on rename detection.
type Record struct {
	Name      string    `toml:"name"`
	ChangeID  string    `toml:"change_id"`
	Remote    string    `toml:"remote,omitempty"`
	TrackedAt time.Time `toml:"tracked_at"`
}

type file struct {
	Version   int      `toml:"version"`
	Bookmarks []Record `toml:"bookmarks"`
}

// Store wraps the tracked.toml file for one workspace.
type Store struct {
	path string
}

func Open(workspaceRoot string) *Store {
	return &Store{path: filepath.Join(workspaceRoot, ".jj", "repo", "ryu", "tracked.toml")}
}

// Load reads the tracking file. A missing file is not an error; it
// reads as an empty record set.
func (s *Store) Load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading tracking file: %w", err)
	}
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing tracking file: %w", err)
	}
	return f.Bookmarks, nil
}

// Save rewrites the tracking file atomically.
func (s *Store) Save(records []Record) error {
	f := file{Version: trackedFileVersion, Bookmarks: records}
	return writeAtomicTOML(s.path, f)
}

// Reconcile implements rename-aware tracking: for each record whose
// stored name no longer resolves in g, search by ChangeID and rewrite
// the name on a match; drop the record (returning a warning) if the
// change is no longer present at all.
func Reconcile(g *graph.ChangeGraph, records []Record) ([]Record, []string) {
	warnings := make([]string, 0)
	byChangeID := make(map[string]string, len(g.BookmarksInOrder()))
	for _, name := range g.BookmarksInOrder() {
		bk, ok := g.Bookmark(name)
		if !ok {
			continue
		}
		byChangeID[bk.ChangeID] = name
	}

	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if _, ok := g.Bookmark(rec.Name); ok {
			out = append(out, rec)
			continue
		}
		if newName, ok := byChangeID[rec.ChangeID]; ok {
			warnings = append(warnings, fmt.Sprintf("tracked bookmark renamed: %q -> %q", rec.Name, newName))
			rec.Name = newName
			out = append(out, rec)
			continue
		}
		warnings = append(warnings, fmt.Sprintf("dropping tracking for %q: change no longer present in the local stack", rec.Name))
	}
	return out, warnings
}

// TrackedSet builds the name->tracked lookup the analyzer consumes.
func TrackedSet(records []Record) map[string]bool {
	set := make(map[string]bool, len(records))
	for _, r := range records {
		set[r.Name] = true
	}
	return set
}

func writeAtomicTOML(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating tracking directory: %w", err)
	}
	tmpPath := path + "." + randomToken() + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	enc := toml.NewEncoder(file)
	if err := enc.Encode(v); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func randomToken() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
