package extract

// Extractor recovers a Document from captured HTML. The browser engine uses
// it when its in-page scripts fail.
type Extractor interface {
	Extract(input []byte, baseURL string) Document
}

// SourceExtractor parses the captured page source with FromHTML.
type SourceExtractor struct{}

func (SourceExtractor) Extract(input []byte, baseURL string) Document {
	return FromHTML(input, baseURL)
}
