package extract

import (
	"strings"

	"github.com/knowmcp/knowmcp/internal/store"
)

// TextExtractor handles plain text and source code files. The content
// is passed through untouched and the title comes from the file name.
type TextExtractor struct{}

// NewTextExtractor creates a plain text extractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract implements ContentExtractor.
func (e *TextExtractor) Extract(source string) (string, string, store.Metadata, error) {
	data, err := readSource(source)
	if err != nil {
		return "", "", nil, err
	}

	content := strings.ToValidUTF8(string(data), "")
	return titleFromPath(source), content, baseMetadata(source, len(data)), nil
}

// Validate implements ContentExtractor.
func (e *TextExtractor) Validate(source string) bool {
	return readableFile(source)
}

// SupportedTypes implements ContentExtractor.
func (e *TextExtractor) SupportedTypes() []store.SourceType {
	return []store.SourceType{store.SourceTypeDocument, store.SourceTypeCode}
}

var _ ContentExtractor = (*TextExtractor)(nil)
