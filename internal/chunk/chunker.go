// Package chunk splits item content into bounded, offset-addressed
// chunks for indexing. The chunker applies three tiers top-down:
// heading split, paragraph split, then a sliding window over anything
// still larger than the chunk size cap.
package chunk

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/knowmcp/knowmcp/internal/store"
)

// Default chunking parameters, in characters.
const (
	DefaultMinChunkSize = 100
	DefaultMaxChunkSize = 1500
	DefaultOverlapRatio = 0.2
)

// Options configures the chunker.
type Options struct {
	MinChunkSize int
	MaxChunkSize int
	OverlapRatio float64
}

// DefaultOptions returns the standard chunking parameters.
func DefaultOptions() Options {
	return Options{
		MinChunkSize: DefaultMinChunkSize,
		MaxChunkSize: DefaultMaxChunkSize,
		OverlapRatio: DefaultOverlapRatio,
	}
}

// Chunker splits content into chunks. Stateless and safe for
// concurrent use.
type Chunker struct {
	opts Options
}

// NewChunker creates a chunker, filling zero options with defaults.
func NewChunker(opts Options) *Chunker {
	if opts.MinChunkSize <= 0 {
		opts.MinChunkSize = DefaultMinChunkSize
	}
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	if opts.OverlapRatio <= 0 || opts.OverlapRatio >= 1 {
		opts.OverlapRatio = DefaultOverlapRatio
	}
	return &Chunker{opts: opts}
}

var (
	// Markdown headings: # Title through ###### Title.
	mdHeadingPattern = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.+)$`)

	// HTML heading tags present as literal text.
	htmlHeadingPattern = regexp.MustCompile(`(?is)<h([1-6])[^>]*>(.*?)</h[1-6]\s*>`)

	htmlTagPattern = regexp.MustCompile(`<[^>]+>`)
)

// Chunk splits content into an ordered chunk sequence with ItemID
// unset. Chunk indexes are contiguous from 0 and offsets are half-open
// byte ranges into the original content. Chunking never fails: any
// internal panic degrades to a single chunk spanning the whole
// content.
func (c *Chunker) Chunk(content, title string) (chunks []*store.Chunk) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("chunking_panic_recovered", slog.Any("panic", r))
			chunks = []*store.Chunk{c.degenerateChunk(content, title)}
		}
	}()

	if content == "" {
		return nil
	}

	if len(content) < c.opts.MinChunkSize*2 {
		return []*store.Chunk{c.degenerateChunk(content, title)}
	}

	segments := splitByHeadings(content)

	var pieces []piece
	for _, seg := range segments {
		paras := splitParagraphs(content, seg)
		paras = c.coalesceSmall(content, paras)
		for _, p := range paras {
			if p.end-p.start > c.opts.MaxChunkSize {
				pieces = append(pieces, c.slidingWindows(content, p)...)
			} else {
				pieces = append(pieces, p)
			}
		}
	}

	if len(pieces) == 0 {
		return []*store.Chunk{c.degenerateChunk(content, title)}
	}

	chunks = make([]*store.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = &store.Chunk{
			ChunkIndex:    i,
			Content:       content[p.start:p.end],
			Heading:       p.heading,
			StartPosition: p.start,
			EndPosition:   p.end,
		}
	}
	return chunks
}

// degenerateChunk is the single-chunk result used for short content
// and as the failure fallback. Heading falls back to the item title.
func (c *Chunker) degenerateChunk(content, title string) *store.Chunk {
	return &store.Chunk{
		ChunkIndex:    0,
		Content:       content,
		Heading:       title,
		StartPosition: 0,
		EndPosition:   len(content),
	}
}

// piece is an intermediate chunk candidate: a half-open range into the
// original content plus the heading it falls under.
type piece struct {
	heading    string
	start, end int
}

// segment is a heading-delimited region of the content. The body
// range excludes the heading line itself.
type segment struct {
	heading    string
	start, end int
}

// splitByHeadings splits content into heading-delimited segments.
// Markdown and literal HTML headings both act as boundaries; text
// before the first heading becomes a heading-less segment. Content
// with no headings yields one segment covering everything.
func splitByHeadings(content string) []segment {
	type boundary struct {
		start, bodyStart int
		heading          string
	}

	var bounds []boundary
	for _, m := range mdHeadingPattern.FindAllStringSubmatchIndex(content, -1) {
		bounds = append(bounds, boundary{
			start:     m[0],
			bodyStart: m[1],
			heading:   strings.TrimSpace(content[m[4]:m[5]]),
		})
	}
	for _, m := range htmlHeadingPattern.FindAllStringSubmatchIndex(content, -1) {
		heading := htmlTagPattern.ReplaceAllString(content[m[4]:m[5]], "")
		bounds = append(bounds, boundary{
			start:     m[0],
			bodyStart: m[1],
			heading:   strings.TrimSpace(heading),
		})
	}

	if len(bounds) == 0 {
		return []segment{{heading: "", start: 0, end: len(content)}}
	}

	// Both passes scan left to right; merge-sort by position
	for i := 1; i < len(bounds); i++ {
		for j := i; j > 0 && bounds[j].start < bounds[j-1].start; j-- {
			bounds[j], bounds[j-1] = bounds[j-1], bounds[j]
		}
	}

	var segments []segment
	if bounds[0].start > 0 {
		segments = append(segments, segment{heading: "", start: 0, end: bounds[0].start})
	}
	for i, b := range bounds {
		end := len(content)
		if i+1 < len(bounds) {
			end = bounds[i+1].start
		}
		segments = append(segments, segment{heading: b.heading, start: b.bodyStart, end: end})
	}
	return segments
}

// splitParagraphs splits a segment body on blank-line boundaries,
// keeping absolute offsets and dropping whitespace-only paragraphs.
func splitParagraphs(content string, seg segment) []piece {
	var pieces []piece

	pos := seg.start
	for pos < seg.end {
		rel := strings.Index(content[pos:seg.end], "\n\n")
		var end int
		if rel == -1 {
			end = seg.end
		} else {
			end = pos + rel
		}

		start, trimmedEnd := trimRange(content, pos, end)
		if trimmedEnd > start {
			pieces = append(pieces, piece{heading: seg.heading, start: start, end: trimmedEnd})
		}

		if rel == -1 {
			break
		}
		pos = end + 2
	}
	return pieces
}

// trimRange shrinks a range to exclude leading and trailing
// whitespace.
func trimRange(content string, start, end int) (int, int) {
	for start < end {
		r, size := utf8.DecodeRuneInString(content[start:end])
		if !isSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(content[start:end])
		if !isSpace(r) {
			break
		}
		end -= size
	}
	return start, end
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// coalesceSmall merges runs of adjacent small paragraphs until they
// reach MinChunkSize, as long as the merged span stays under
// MaxChunkSize. Merged pieces span the original text between them so
// offsets remain exact.
func (c *Chunker) coalesceSmall(content string, pieces []piece) []piece {
	if len(pieces) < 2 {
		return pieces
	}

	var out []piece
	cur := pieces[0]
	for _, next := range pieces[1:] {
		curLen := cur.end - cur.start
		merged := next.end - cur.start
		if curLen < c.opts.MinChunkSize && merged <= c.opts.MaxChunkSize && next.heading == cur.heading {
			cur.end = next.end
			continue
		}
		out = append(out, cur)
		cur = next
	}
	out = append(out, cur)
	return out
}

// slidingWindows cuts an oversized piece into windows of MaxChunkSize
// with stride MaxChunkSize * (1 - OverlapRatio). Window edges are
// clamped to rune boundaries.
func (c *Chunker) slidingWindows(content string, p piece) []piece {
	size := c.opts.MaxChunkSize
	stride := int(float64(size) * (1 - c.opts.OverlapRatio))
	if stride < 1 {
		stride = 1
	}

	var out []piece
	start := p.start
	for start < p.end {
		end := start + size
		if end >= p.end {
			end = p.end
		} else {
			end = runeFloor(content, end)
		}
		out = append(out, piece{heading: p.heading, start: start, end: end})
		if end == p.end {
			break
		}
		start = runeFloor(content, start+stride)
	}
	return out
}

// runeFloor moves pos back to the nearest rune boundary at or before
// it.
func runeFloor(s string, pos int) int {
	for pos > 0 && !utf8.RuneStart(s[pos]) {
		pos--
	}
	return pos
}
