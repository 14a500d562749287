package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/hyperifyio/goscrape/internal/page"
)

// Document is the content recovered from a captured HTML source when the
// in-browser extraction scripts fail.
type Document struct {
	Title string
	Text  string
	Links []page.Link
}

// FromHTML parses input and returns its title, the direct text of every
// element under <body> in document order (one line per element, script and
// style skipped) and all anchors resolved against baseURL.
func FromHTML(input []byte, baseURL string) Document {
	node, err := html.Parse(bytes.NewReader(input))
	if err != nil || node == nil {
		return Document{}
	}
	doc := Document{Title: strings.TrimSpace(findTitle(node))}
	root := findFirst(node, "body")
	if root == nil {
		root = node
	}
	doc.Text = DirectText(root)
	doc.Links = Links(input, baseURL)
	return doc
}

// DirectText walks n in document order and, for every element other than
// script or style, joins the element's own text children. Non-empty results
// become one line each.
func DirectText(n *html.Node) string {
	var lines []string
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode {
			switch strings.ToLower(cur.Data) {
			case "script", "style":
				return
			}
			if line := ownText(cur); line != "" {
				lines = append(lines, line)
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return Normalize(strings.Join(lines, "\n"))
}

func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	}
	return collapseSpaces(strings.TrimSpace(b.String()))
}

// Links returns every anchor in input with its href resolved against baseURL
// and its text trimmed. Anchors without an href keep an empty href. A parse
// failure yields an empty, non-nil list.
func Links(input []byte, baseURL string) []page.Link {
	out := []page.Link{}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(input))
	if err != nil {
		return out
	}
	base, _ := url.Parse(baseURL)
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if ok {
			href = resolve(base, strings.TrimSpace(href))
		}
		out = append(out, page.Link{Href: href, Text: strings.TrimSpace(s.Text())})
	})
	return out
}

func resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// Normalize converts text to NFC and drops trailing whitespace on each line.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func findTitle(n *html.Node) string {
	head := findFirst(n, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return t.FirstChild.Data
}

func findFirst(n *html.Node, tag string) *html.Node {
	var res *html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if res != nil {
			return
		}
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			res = cur
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
			if res != nil {
				return
			}
		}
	}
	dfs(n)
	return res
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
