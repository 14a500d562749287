package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/hyperifyio/goscrape/internal/page"
)

// Format selects how batch results are written.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
)

// ParseFormat accepts json, md/markdown and pdf.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Output writes results to Path, or to W when Path is empty. PDF always needs
// a Path.
type Output struct {
	Format Format
	Path   string
	W      io.Writer
	Fs     afero.Fs
}

func (o Output) write(v any, markdown func() string) error {
	var b []byte
	switch o.Format {
	case FormatPDF:
		if o.Path == "" {
			return fmt.Errorf("pdf output requires an output path")
		}
		return writeSimplePDF(markdown(), o.Path)
	case FormatMarkdown:
		b = []byte(markdown())
	default:
		var err error
		if b, err = json.MarshalIndent(v, "", "  "); err != nil {
			return err
		}
		b = append(b, '\n')
	}
	if o.Path == "" {
		_, err := o.W.Write(b)
		return err
	}
	fs := o.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return afero.WriteFile(fs, o.Path, b, 0o644)
}

// WriteContent writes an extraction batch; order controls the Markdown
// sequence.
func (o Output) WriteContent(order []string, results map[string]page.Content) error {
	return o.write(results, func() string { return contentMarkdown(order, results) })
}

// WriteProcessed writes a processing batch.
func (o Output) WriteProcessed(order []string, results map[string]page.Processed) error {
	return o.write(results, func() string { return processedMarkdown(order, results) })
}

// WriteStatus writes a cache status partition.
func (o Output) WriteStatus(cached, uncached []string) error {
	v := map[string][]string{"cached": cached, "uncached": uncached}
	return o.write(v, func() string {
		var sb strings.Builder
		sb.WriteString("# Cache status\n\n## Cached\n\n")
		for _, u := range cached {
			fmt.Fprintf(&sb, "- %s\n", u)
		}
		sb.WriteString("\n## Uncached\n\n")
		for _, u := range uncached {
			fmt.Fprintf(&sb, "- %s\n", u)
		}
		return sb.String()
	})
}

const excerptChars = 500

func contentMarkdown(order []string, results map[string]page.Content) string {
	var sb strings.Builder
	sb.WriteString("# Extracted pages\n")
	for _, u := range order {
		c, ok := results[u]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", heading(c.Title, u))
		fmt.Fprintf(&sb, "Source: [%s](%s)\n\n", u, u)
		if c.Failed() {
			fmt.Fprintf(&sb, "Error: %s\n", c.Error)
			continue
		}
		fmt.Fprintf(&sb, "Extracted: %s, %d links\n\n", c.ExtractedAt.Format("2006-01-02 15:04:05"), len(c.Links))
		sb.WriteString(excerpt(c.TextContent))
		sb.WriteString("\n")
	}
	return sb.String()
}

func processedMarkdown(order []string, results map[string]page.Processed) string {
	var sb strings.Builder
	sb.WriteString("# Processing results\n")
	for _, u := range order {
		r, ok := results[u]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", heading(r.Title, u))
		fmt.Fprintf(&sb, "Source: [%s](%s)\n\n", u, u)
		if r.Failed() {
			fmt.Fprintf(&sb, "Error: %s\n", r.Error)
			continue
		}
		fmt.Fprintf(&sb, "Model: %s, processed %s\n\n", r.Model, r.ProcessedAt.Format("2006-01-02 15:04:05"))
		sb.WriteString(strings.TrimSpace(r.Response))
		sb.WriteString("\n")
	}
	return sb.String()
}

func heading(title, url string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return url
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= excerptChars {
		return s
	}
	return string(r[:excerptChars]) + "..."
}
