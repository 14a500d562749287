package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/hyperifyio/goscrape/internal/page"
)

// Clear removes the cache directory and everything in it, then recreates it
// with the store's permissions.
func (s *Store) Clear() error {
	if s == nil || strings.TrimSpace(s.Dir) == "" {
		return errors.New("cache dir not configured")
	}
	if err := s.fs().RemoveAll(s.Dir); err != nil {
		return err
	}
	return s.ensureDir()
}

// PruneByAge deletes records whose timestamp is older than maxAge as of now,
// plus records that no longer decode and temp files left by interrupted
// writes. The age is chosen by the caller at prune time; records themselves
// never carry an expiry.
func PruneByAge(fs afero.Fs, dir string, maxAge time.Duration, now time.Time) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	removed := 0
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		if strings.HasSuffix(name, tempExt) {
			// Stale temp files only; a fresh one may belong to an in-flight write.
			if now.Sub(info.ModTime()) > time.Minute {
				if fs.Remove(path) == nil {
					removed++
				}
			}
			return nil
		}
		if filepath.Ext(name) != recordExt {
			return nil
		}
		b, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil // skip unreadable
		}
		var rec Record
		expired := true
		if err := json.Unmarshal(b, &rec); err == nil {
			if ts, ok := page.ParseTimestamp(rec.Timestamp); ok {
				expired = now.Sub(ts) > maxAge
			}
		}
		if !expired {
			return nil
		}
		if fs.Remove(path) == nil {
			removed++
		}
		return nil
	})
	return removed, err
}
