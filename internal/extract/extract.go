// Package extract turns source files into items ready for ingestion.
//
// Each ContentExtractor handles one or more source types. The Registry
// routes a source path to the right extractor based on its extension.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
	"github.com/knowmcp/knowmcp/internal/store"
)

// MaxSourceSize is the largest file the extractors will read.
const MaxSourceSize = 10 << 20 // 10 MiB

// ContentExtractor extracts title, content, and metadata from a source.
type ContentExtractor interface {
	// Extract reads the source and returns the item fields.
	Extract(source string) (title, content string, metadata store.Metadata, err error)

	// Validate reports whether this extractor can handle the source.
	Validate(source string) bool

	// SupportedTypes lists the source types this extractor produces.
	SupportedTypes() []store.SourceType
}

// Registry routes source paths to extractors by file extension.
type Registry struct {
	mu         sync.RWMutex
	byExt      map[string]ContentExtractor
	typeForExt map[string]store.SourceType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt:      make(map[string]ContentExtractor),
		typeForExt: make(map[string]store.SourceType),
	}
}

// NewDefaultRegistry creates a registry with the built-in extractors
// wired to their usual extensions.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	md := NewMarkdownExtractor()
	for _, ext := range []string{".md", ".markdown"} {
		r.Register(ext, store.SourceTypeDocument, md)
	}

	text := NewTextExtractor()
	for _, ext := range []string{".txt", ".text", ".rst", ".adoc"} {
		r.Register(ext, store.SourceTypeDocument, text)
	}
	for _, ext := range []string{".go", ".py", ".js", ".ts", ".rs", ".java", ".c", ".h", ".sh", ".sql", ".yaml", ".yml", ".toml", ".json"} {
		r.Register(ext, store.SourceTypeCode, text)
	}

	html := NewHTMLExtractor()
	for _, ext := range []string{".html", ".htm"} {
		r.Register(ext, store.SourceTypeWeb, html)
	}

	return r
}

// Register maps an extension to an extractor and source type.
// Extensions are matched case-insensitively and must include the dot.
func (r *Registry) Register(ext string, st store.SourceType, e ContentExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ext = strings.ToLower(ext)
	r.byExt[ext] = e
	r.typeForExt[ext] = st
}

// ExtractorFor returns the extractor and source type for a path.
// The boolean is false when no extractor handles the extension.
func (r *Registry) ExtractorFor(source string) (ContentExtractor, store.SourceType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext := strings.ToLower(filepath.Ext(source))
	e, ok := r.byExt[ext]
	if !ok {
		return nil, "", false
	}
	return e, r.typeForExt[ext], true
}

// Supported reports whether the registry can extract the source.
func (r *Registry) Supported(source string) bool {
	e, _, ok := r.ExtractorFor(source)
	return ok && e.Validate(source)
}

// Extract builds an item from a source path. The item carries the
// extracted title, content, and metadata plus the source type and path.
func (r *Registry) Extract(source string) (*store.Item, error) {
	e, st, ok := r.ExtractorFor(source)
	if !ok {
		return nil, knowerrors.New(knowerrors.ErrCodeUnsupportedSource,
			fmt.Sprintf("no extractor for %s", filepath.Ext(source)), nil)
	}
	if !e.Validate(source) {
		return nil, knowerrors.New(knowerrors.ErrCodeUnsupportedSource,
			fmt.Sprintf("source %s cannot be read", source), nil)
	}

	title, content, metadata, err := e.Extract(source)
	if err != nil {
		return nil, err
	}

	return &store.Item{
		Title:      title,
		Content:    content,
		SourceType: st,
		SourcePath: source,
		Metadata:   metadata,
	}, nil
}

// readSource reads a source file, enforcing the size cap.
func readSource(source string) ([]byte, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, knowerrors.New(knowerrors.ErrCodeInvalidInput,
			fmt.Sprintf("cannot stat source %s", source), err)
	}
	if info.Size() > MaxSourceSize {
		return nil, knowerrors.New(knowerrors.ErrCodeInvalidInput,
			fmt.Sprintf("source %s exceeds %d bytes", source, MaxSourceSize), nil)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, knowerrors.New(knowerrors.ErrCodeInvalidInput,
			fmt.Sprintf("cannot read source %s", source), err)
	}
	return data, nil
}

// readableFile reports whether the path is an existing regular file
// under the size cap.
func readableFile(source string) bool {
	info, err := os.Stat(source)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() <= MaxSourceSize
}

// titleFromPath derives a title from the file name without extension.
func titleFromPath(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// baseMetadata builds the metadata shared by all extractors.
func baseMetadata(source string, size int) store.Metadata {
	return store.Metadata{
		"extension":  strings.ToLower(filepath.Ext(source)),
		"size_bytes": size,
	}
}
