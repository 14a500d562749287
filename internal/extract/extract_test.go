package extract

import (
	"strings"
	"testing"
)

func TestFromHTML_DirectTextPerElement(t *testing.T) {
	html := `<!doctype html>
    <html>
      <head><title>Test Page</title></head>
      <body>
        <div>Outer <span>inner</span> tail</div>
        <p>Paragraph text.</p>
        <script>var hidden = "script text";</script>
        <style>.x { color: red }</style>
      </body>
    </html>`

	doc := FromHTML([]byte(html), "https://example.com/")
	if doc.Title != "Test Page" {
		t.Fatalf("expected title 'Test Page', got %q", doc.Title)
	}
	lines := strings.Split(doc.Text, "\n")
	want := []string{"Outer tail", "inner", "Paragraph text."}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), doc.Text)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, lines[i], want[i])
		}
	}
	if strings.Contains(doc.Text, "script text") || strings.Contains(doc.Text, "color") {
		t.Fatalf("script/style text leaked: %q", doc.Text)
	}
}

func TestFromHTML_NoBody(t *testing.T) {
	doc := FromHTML([]byte(`<title>Only</title>`), "")
	if doc.Title != "Only" {
		t.Fatalf("expected title, got %q", doc.Title)
	}
	if doc.Links == nil {
		t.Fatal("links must be a non-nil list")
	}
}

func TestLinks_ResolvesAndTrims(t *testing.T) {
	html := `<html><body>
      <a href="/docs">  Docs  </a>
      <a href="https://other.example/x">Other</a>
      <a>No href</a>
    </body></html>`
	links := Links([]byte(html), "https://example.com/base/page")
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d", len(links))
	}
	if links[0].Href != "https://example.com/docs" || links[0].Text != "Docs" {
		t.Fatalf("unexpected first link: %+v", links[0])
	}
	if links[1].Href != "https://other.example/x" {
		t.Fatalf("absolute href changed: %+v", links[1])
	}
	if links[2].Href != "" || links[2].Text != "No href" {
		t.Fatalf("unexpected anchor without href: %+v", links[2])
	}
}

func TestNormalize_ComposesAndTrims(t *testing.T) {
	// "e" + combining acute composes to a single rune under NFC.
	got := Normalize("cafe\u0301   \nline  ")
	if got != "caf\u00e9\nline" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestSourceExtractor(t *testing.T) {
	var e Extractor = SourceExtractor{}
	doc := e.Extract([]byte(`<html><head><title>T</title></head><body><p>x</p></body></html>`), "https://e.example")
	if doc.Title != "T" || doc.Text != "x" {
		t.Fatalf("unexpected doc: %+v", doc)
	}
}
