package extract

import (
	"regexp"
	"strings"

	"github.com/knowmcp/knowmcp/internal/store"
)

var (
	titleTagPattern  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptPattern    = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	blockTagPattern  = regexp.MustCompile(`(?i)</?(p|div|br|h[1-6]|li|ul|ol|table|tr|section|article)[^>]*>`)
	anyTagPattern    = regexp.MustCompile(`<[^>]+>`)
	blankRunsPattern = regexp.MustCompile(`\n{3,}`)
)

// HTMLExtractor handles saved web pages. Scripts and styles are
// stripped, block-level tags become paragraph breaks, and the title
// comes from the <title> element when present.
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTML extractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract implements ContentExtractor.
func (e *HTMLExtractor) Extract(source string) (string, string, store.Metadata, error) {
	data, err := readSource(source)
	if err != nil {
		return "", "", nil, err
	}

	raw := strings.ToValidUTF8(string(data), "")

	title := titleFromPath(source)
	if m := titleTagPattern.FindStringSubmatch(raw); m != nil {
		if t := strings.TrimSpace(anyTagPattern.ReplaceAllString(m[1], "")); t != "" {
			title = t
		}
	}

	content := scriptPattern.ReplaceAllString(raw, "")
	content = blockTagPattern.ReplaceAllString(content, "\n\n")
	content = anyTagPattern.ReplaceAllString(content, " ")
	content = unescapeEntities(content)
	content = blankRunsPattern.ReplaceAllString(content, "\n\n")
	content = strings.TrimSpace(content)

	return title, content, baseMetadata(source, len(data)), nil
}

// Validate implements ContentExtractor.
func (e *HTMLExtractor) Validate(source string) bool {
	return readableFile(source)
}

// SupportedTypes implements ContentExtractor.
func (e *HTMLExtractor) SupportedTypes() []store.SourceType {
	return []store.SourceType{store.SourceTypeWeb}
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

func unescapeEntities(s string) string {
	return entityReplacer.Replace(s)
}

var _ ContentExtractor = (*HTMLExtractor)(nil)
