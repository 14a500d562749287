package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/hyperifyio/goscrape/internal/page"
)

// Record is the on-disk form of one cached extraction. Validity is not part
// of the record: readers decide with their own TTL.
type Record struct {
	URL       string       `json:"url"`
	Timestamp string       `json:"timestamp"`
	Content   page.Content `json:"content"`
}

// Store keeps extracted page content on disk as <sha256(url)>.json. Writes go
// to a temp file in the same directory and are renamed into place, so a
// reader sees either the previous record or the new one. There is no
// locking; concurrent writers of one URL race last-write-wins.
type Store struct {
	Dir string
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// StrictPerms, when true, enforces 0700 on the cache directory and 0600 on
	// record files.
	StrictPerms bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// New returns a Store rooted at dir on the OS filesystem.
func New(dir string) *Store {
	return &Store{Dir: dir, Fs: afero.NewOsFs()}
}

func (s *Store) fs() afero.Fs {
	if s.Fs == nil {
		return afero.NewOsFs()
	}
	return s.Fs
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) ensureDir() error {
	if s == nil || strings.TrimSpace(s.Dir) == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if s.StrictPerms {
		perm = 0o700
	}
	fs := s.fs()
	if err := fs.MkdirAll(s.Dir, perm); err != nil {
		return err
	}
	if s.StrictPerms {
		if info, err := fs.Stat(s.Dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = fs.Chmod(s.Dir, 0o700)
		}
	}
	return nil
}

// Key returns the cache key for a raw URL string. No normalization is applied.
func Key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}

// PathFor returns the record path for url.
func (s *Store) PathFor(url string) string {
	return filepath.Join(s.Dir, Key(url)+recordExt)
}

const (
	recordExt = ".json"
	tempExt   = ".tmp"
)

// Get returns the cached content for url when a record exists, decodes and is
// no older than ttl. Any problem reading the record is treated as a miss.
func (s *Store) Get(_ context.Context, url string, ttl time.Duration) (page.Content, bool) {
	if s == nil || strings.TrimSpace(s.Dir) == "" {
		return page.Content{}, false
	}
	p := s.PathFor(url)
	b, err := afero.ReadFile(s.fs(), p)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("url", url).Msg("cache read failed; treating as miss")
		}
		return page.Content{}, false
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("corrupt cache record; treating as miss")
		return page.Content{}, false
	}
	fetchedAt, ok := page.ParseTimestamp(rec.Timestamp)
	if !ok {
		log.Warn().Str("url", url).Str("timestamp", rec.Timestamp).Msg("bad cache timestamp; treating as miss")
		return page.Content{}, false
	}
	if rec.Content.Failed() {
		return page.Content{}, false
	}
	age := s.now().Sub(fetchedAt)
	if age > ttl {
		log.Debug().Str("url", url).Dur("age", age).Msg("cache record expired")
		return page.Content{}, false
	}
	log.Debug().Str("url", url).Dur("age", age).Msg("cache hit")
	return rec.Content, true
}

// Put replaces the record for url with content stamped at the current time.
// Failure content is never stored. It reports whether the record was written.
func (s *Store) Put(ctx context.Context, url string, content page.Content) bool {
	if content.Failed() {
		return false
	}
	if err := s.write(ctx, url, content); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("cache write failed")
		return false
	}
	return true
}

func (s *Store) write(_ context.Context, url string, content page.Content) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	rec := Record{URL: url, Timestamp: s.now().Format(time.RFC3339Nano), Content: content}
	data, err := json.MarshalIndent(&rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	fs := s.fs()
	key := Key(url)
	tmp, err := afero.TempFile(fs, s.Dir, key+".*"+tempExt)
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = fs.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	mode := os.FileMode(0o644)
	if s.StrictPerms {
		mode = 0o600
	}
	_ = fs.Chmod(tmpName, mode)
	if err := fs.Rename(tmpName, filepath.Join(s.Dir, key+recordExt)); err != nil {
		cleanup()
		return fmt.Errorf("rename record: %w", err)
	}
	return nil
}
