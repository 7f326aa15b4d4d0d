package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
	"github.com/knowmcp/knowmcp/internal/store"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistry_ExtractMarkdown(t *testing.T) {
	path := writeFile(t, "notes.md", "# Kafka Basics\n\nSome notes about kafka.\n")

	r := NewDefaultRegistry()
	item, err := r.Extract(path)
	require.NoError(t, err)

	assert.Equal(t, "Kafka Basics", item.Title)
	assert.Equal(t, store.SourceTypeDocument, item.SourceType)
	assert.Equal(t, path, item.SourcePath)
	assert.Contains(t, item.Content, "Some notes about kafka.")
	assert.Equal(t, ".md", item.Metadata["extension"])
}

func TestRegistry_MarkdownWithoutHeadingUsesFilename(t *testing.T) {
	path := writeFile(t, "scratch.md", "just some text, no heading")

	r := NewDefaultRegistry()
	item, err := r.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "scratch", item.Title)
}

func TestRegistry_ExtractText(t *testing.T) {
	path := writeFile(t, "todo.txt", "buy milk\nfix bike\n")

	r := NewDefaultRegistry()
	item, err := r.Extract(path)
	require.NoError(t, err)

	assert.Equal(t, "todo", item.Title)
	assert.Equal(t, store.SourceTypeDocument, item.SourceType)
	assert.Equal(t, "buy milk\nfix bike\n", item.Content)
}

func TestRegistry_ExtractCode(t *testing.T) {
	path := writeFile(t, "main.go", "package main\n\nfunc main() {}\n")

	r := NewDefaultRegistry()
	item, err := r.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, store.SourceTypeCode, item.SourceType)
	assert.Equal(t, "main", item.Title)
}

func TestRegistry_ExtractHTML(t *testing.T) {
	path := writeFile(t, "page.html", `<html>
<head><title>Saved Article</title><style>body{color:red}</style></head>
<body>
<script>alert("x")</script>
<h1>Heading</h1>
<p>First paragraph with &amp; entity.</p>
<p>Second paragraph.</p>
</body>
</html>`)

	r := NewDefaultRegistry()
	item, err := r.Extract(path)
	require.NoError(t, err)

	assert.Equal(t, "Saved Article", item.Title)
	assert.Equal(t, store.SourceTypeWeb, item.SourceType)
	assert.Contains(t, item.Content, "First paragraph with & entity.")
	assert.Contains(t, item.Content, "Second paragraph.")
	assert.NotContains(t, item.Content, "alert")
	assert.NotContains(t, item.Content, "color:red")
	assert.NotContains(t, item.Content, "<p>")
}

func TestRegistry_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "scan.pdf", "%PDF-1.4")

	r := NewDefaultRegistry()
	_, err := r.Extract(path)
	require.Error(t, err)
	assert.Equal(t, knowerrors.ErrCodeUnsupportedSource, knowerrors.GetCode(err))
}

func TestRegistry_MissingFile(t *testing.T) {
	r := NewDefaultRegistry()
	_, err := r.Extract(filepath.Join(t.TempDir(), "gone.md"))
	require.Error(t, err)
	assert.Equal(t, knowerrors.ErrCodeUnsupportedSource, knowerrors.GetCode(err))
}

func TestRegistry_Supported(t *testing.T) {
	path := writeFile(t, "a.md", "# x")

	r := NewDefaultRegistry()
	assert.True(t, r.Supported(path))
	assert.False(t, r.Supported("whatever.xyz"))
}

func TestRegistry_CustomRegistration(t *testing.T) {
	path := writeFile(t, "log.custom", "log line one")

	r := NewRegistry()
	assert.False(t, r.Supported(path))

	r.Register(".custom", store.SourceTypeDocument, NewTextExtractor())
	item, err := r.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "log line one", item.Content)
}

func TestExtensionMatchingIsCaseInsensitive(t *testing.T) {
	path := writeFile(t, "README.MD", "# Upper\n\nbody")

	r := NewDefaultRegistry()
	item, err := r.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "Upper", item.Title)
}

func TestTextExtractor_SupportedTypes(t *testing.T) {
	types := NewTextExtractor().SupportedTypes()
	assert.Contains(t, types, store.SourceTypeDocument)
	assert.Contains(t, types, store.SourceTypeCode)
}
