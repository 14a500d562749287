package search

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// FileSource reads URLs from a local file: a JSON array of URL strings or of
// {"url": ...} objects, or a plain list with one URL per line ("#" starts a
// comment). The query is ignored.
type FileSource struct {
	Path string
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
}

func (f *FileSource) Name() string { return "file" }

func (f *FileSource) Collect(_ context.Context, _ string, limit int) ([]string, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.New("url file path is empty")
	}
	fs := f.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	b, err := afero.ReadFile(fs, f.Path)
	if err != nil {
		return nil, err
	}
	urls, err := parseURLList(bytes.TrimSpace(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	if limit > 0 && len(urls) > limit {
		urls = urls[:limit]
	}
	return urls, nil
}

func parseURLList(b []byte) ([]string, error) {
	if len(b) > 0 && b[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(items))
		for i, raw := range items {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				out = appendURL(out, s)
				continue
			}
			var obj struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(raw, &obj); err != nil {
				return nil, fmt.Errorf("entry %d: want a url string or {\"url\": ...}", i)
			}
			out = appendURL(out, obj.URL)
		}
		return out, nil
	}
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		out = appendURL(out, line)
	}
	return out, sc.Err()
}

func appendURL(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}
