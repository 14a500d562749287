package page

import (
	"encoding/json"
	"time"
)

// Link is an anchor found on a page: the resolved href and its trimmed text.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Content is the outcome of extracting one URL. It is either a successful
// extraction or a failure carrying only the URL and an error message, never
// both.
type Content struct {
	URL         string
	Title       string
	HTML        string
	TextContent string
	Links       []Link
	ExtractedAt time.Time
	Error       string
}

// Failed reports whether c records an extraction failure.
func (c Content) Failed() bool { return c.Error != "" }

// Failure builds the failure record for url.
func Failure(url string, err error) Content {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Content{URL: url, Error: msg}
}

type contentOK struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	HTML        string    `json:"html"`
	TextContent string    `json:"text_content"`
	Links       []Link    `json:"links"`
	ExtractedAt time.Time `json:"extracted_at"`
}

type contentErr struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// MarshalJSON emits exactly one of the success or failure shapes.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Failed() {
		return json.Marshal(contentErr{URL: c.URL, Error: c.Error})
	}
	links := c.Links
	if links == nil {
		links = []Link{}
	}
	return json.Marshal(contentOK{
		URL:         c.URL,
		Title:       c.Title,
		HTML:        c.HTML,
		TextContent: c.TextContent,
		Links:       links,
		ExtractedAt: c.ExtractedAt,
	})
}

// UnmarshalJSON accepts either shape. A record carrying an error is decoded
// as a failure and its content fields are dropped.
func (c *Content) UnmarshalJSON(b []byte) error {
	var raw struct {
		URL         string          `json:"url"`
		Title       string          `json:"title"`
		HTML        string          `json:"html"`
		TextContent string          `json:"text_content"`
		Links       []Link          `json:"links"`
		ExtractedAt json.RawMessage `json:"extracted_at"`
		Error       string          `json:"error"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Error != "" {
		*c = Content{URL: raw.URL, Error: raw.Error}
		return nil
	}
	*c = Content{
		URL:         raw.URL,
		Title:       raw.Title,
		HTML:        raw.HTML,
		TextContent: raw.TextContent,
		Links:       raw.Links,
	}
	if len(raw.ExtractedAt) > 0 {
		var s string
		if err := json.Unmarshal(raw.ExtractedAt, &s); err == nil {
			if t, ok := ParseTimestamp(s); ok {
				c.ExtractedAt = t
			}
		}
	}
	return nil
}

// Processed is the outcome of running a prompt over one URL's content.
type Processed struct {
	URL         string
	Title       string
	Model       string
	Response    string
	ProcessedAt time.Time
	Error       string
}

// Failed reports whether p records a processing failure.
func (p Processed) Failed() bool { return p.Error != "" }

// ProcessFailure builds the failure record for url at the given time.
func ProcessFailure(url string, err error, at time.Time) Processed {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Processed{URL: url, Error: msg, ProcessedAt: at}
}

type processedOK struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Model       string    `json:"model"`
	Response    string    `json:"response"`
	ProcessedAt time.Time `json:"processed_at"`
}

type processedErr struct {
	URL         string    `json:"url"`
	Error       string    `json:"error"`
	ProcessedAt time.Time `json:"processed_at"`
}

func (p Processed) MarshalJSON() ([]byte, error) {
	if p.Failed() {
		return json.Marshal(processedErr{URL: p.URL, Error: p.Error, ProcessedAt: p.ProcessedAt})
	}
	return json.Marshal(processedOK{
		URL:         p.URL,
		Title:       p.Title,
		Model:       p.Model,
		Response:    p.Response,
		ProcessedAt: p.ProcessedAt,
	})
}

func (p *Processed) UnmarshalJSON(b []byte) error {
	var raw struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Model       string `json:"model"`
		Response    string `json:"response"`
		ProcessedAt string `json:"processed_at"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	at, _ := ParseTimestamp(raw.ProcessedAt)
	if raw.Error != "" {
		*p = Processed{URL: raw.URL, Error: raw.Error, ProcessedAt: at}
		return nil
	}
	*p = Processed{URL: raw.URL, Title: raw.Title, Model: raw.Model, Response: raw.Response, ProcessedAt: at}
	return nil
}

// naiveLayouts are ISO-8601 forms without a zone offset, interpreted in local
// time. Older caches were written this way.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an ISO-8601 timestamp with or without a zone offset.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
