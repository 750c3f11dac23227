package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/chmouel/lazybranch/internal/models"
)

const (
	defaultFilePerms = 0o600
	defaultDirPerms  = 0o750

	// CacheFilename is the branch cache file inside a repository cache dir.
	CacheFilename = "branches.json"
	cacheVersion  = 1
)

type branchCache struct {
	Version  int                   `json:"version"`
	Branches []models.BranchRecord `json:"branches"`
}

// RepoKey names the cache directory of the repository rooted at repoRoot:
// its base name plus a hash of the full path.
func RepoKey(repoRoot string) string {
	clean := filepath.Clean(repoRoot)
	base := strings.Trim(filepath.Base(clean), ". "+string(filepath.Separator))
	if base == "" {
		base = "repo"
	}
	return fmt.Sprintf("%s-%016x", base, xxhash.Sum64String(clean))
}

// BranchCachePath returns the cache file for repoRoot under cacheDir.
func BranchCachePath(cacheDir, repoRoot string) string {
	return filepath.Join(cacheDir, RepoKey(repoRoot), CacheFilename)
}

// LoadBranchCache reads the branches shown while the first classification
// runs. A missing file is not an error.
func LoadBranchCache(path string) (models.BranchMap, error) {
	// #nosec G304 -- path is built by BranchCachePath from the user cache dir
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var payload branchCache
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.Version != cacheVersion || len(payload.Branches) == 0 {
		return nil, nil
	}
	records := make(models.BranchMap, len(payload.Branches))
	for _, r := range payload.Branches {
		records[r.Name] = r
	}
	return records, nil
}

// SaveBranchCache writes the last classification to path.
func SaveBranchCache(path string, records models.BranchMap) error {
	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerms); err != nil {
		return err
	}
	data, err := json.Marshal(branchCache{
		Version:  cacheVersion,
		Branches: records.Sorted(false),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, defaultFilePerms)
}
