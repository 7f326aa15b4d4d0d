package extract

import (
	"regexp"
	"strings"

	"github.com/knowmcp/knowmcp/internal/store"
)

var firstHeadingPattern = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+)$`)

// MarkdownExtractor handles markdown documents. The title is the first
// heading when present, otherwise the file name.
type MarkdownExtractor struct{}

// NewMarkdownExtractor creates a markdown extractor.
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{}
}

// Extract implements ContentExtractor.
func (e *MarkdownExtractor) Extract(source string) (string, string, store.Metadata, error) {
	data, err := readSource(source)
	if err != nil {
		return "", "", nil, err
	}

	content := strings.ToValidUTF8(string(data), "")

	title := titleFromPath(source)
	if m := firstHeadingPattern.FindStringSubmatch(content); m != nil {
		title = strings.TrimSpace(m[1])
	}

	return title, content, baseMetadata(source, len(data)), nil
}

// Validate implements ContentExtractor.
func (e *MarkdownExtractor) Validate(source string) bool {
	return readableFile(source)
}

// SupportedTypes implements ContentExtractor.
func (e *MarkdownExtractor) SupportedTypes() []store.SourceType {
	return []store.SourceType{store.SourceTypeDocument}
}

var _ ContentExtractor = (*MarkdownExtractor)(nil)
