package tracking

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const prCacheFileVersion = 1

// CachedPR is one bookmark's last-known PR association. Safe to
// delete; the forge is always the authoritative source of truth.
// submit writes the cache after a run; remote-state discovery does not
// read it and always looks PRs up on the forge by head branch.
type CachedPR struct {
	Bookmark  string    `toml:"bookmark"`
	Number    int       `toml:"number"`
	URL       string    `toml:"url"`
	Remote    string    `toml:"remote"`
	UpdatedAt time.Time `toml:"updated_at"`
}

type prCacheFile struct {
	Version int        `toml:"version"`
	PRs     []CachedPR `toml:"prs"`
}

// PRCache wraps pr_cache.toml for one workspace.
type PRCache struct {
	path string
}

func OpenPRCache(workspaceRoot string) *PRCache {
	return &PRCache{path: filepath.Join(workspaceRoot, ".jj", "repo", "ryu", "pr_cache.toml")}
}

func (c *PRCache) Load() ([]CachedPR, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading PR cache: %w", err)
	}
	var f prCacheFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing PR cache: %w", err)
	}
	return f.PRs, nil
}

func (c *PRCache) Save(entries []CachedPR) error {
	f := prCacheFile{Version: prCacheFileVersion, PRs: entries}
	return writeAtomicTOML(c.path, f)
}

// ByBookmark indexes cached entries by bookmark name for O(1) lookup.
func ByBookmark(entries []CachedPR) map[string]CachedPR {
	out := make(map[string]CachedPR, len(entries))
	for _, e := range entries {
		out[e.Bookmark] = e
	}
	return out
}
