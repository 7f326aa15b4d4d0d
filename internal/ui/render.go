package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/knowmcp/knowmcp/internal/search"
	"github.com/knowmcp/knowmcp/internal/store"
)

// snippetPreview bounds the chunk preview length in result listings.
const snippetPreview = 200

// Renderer writes human-readable output for the CLI commands.
type Renderer struct {
	out    io.Writer
	styles Styles
}

// NewRenderer creates a renderer for the config's writer.
func NewRenderer(cfg Config) *Renderer {
	return &Renderer{
		out:    cfg.Output,
		styles: GetStyles(cfg.NoColor),
	}
}

// SearchResponse renders a full search response.
func (r *Renderer) SearchResponse(resp *search.Response) {
	if resp.Total == 0 {
		fmt.Fprintf(r.out, "No results for %q\n", resp.Query)
		return
	}

	fmt.Fprintf(r.out, "%s\n\n",
		r.styles.Label.Render(fmt.Sprintf("%d result(s) for %q", resp.Total, resp.Query)))

	if resp.GroupedByCategory != nil {
		for _, category := range resp.CategoryOrder {
			fmt.Fprintf(r.out, "%s\n", r.styles.Heading.Render(category))
			for i, result := range resp.GroupedByCategory[category] {
				r.result(i+1, result)
			}
		}
		return
	}

	for i, result := range resp.Results {
		r.result(i+1, result)
	}
}

// result renders one search result with its matched chunks.
func (r *Renderer) result(num int, res *search.Result) {
	fmt.Fprintf(r.out, "%d. %s %s\n",
		num,
		r.styles.Title.Render(res.Item.Title),
		r.styles.Score.Render(fmt.Sprintf("(%.2f)", res.RelevanceScore)))

	var meta []string
	if res.Item.SourceType != "" {
		meta = append(meta, string(res.Item.SourceType))
	}
	if len(res.Item.Categories) > 0 {
		meta = append(meta, strings.Join(res.Item.Categories, ", "))
	}
	if len(res.Item.Tags) > 0 {
		meta = append(meta, "#"+strings.Join(res.Item.Tags, " #"))
	}
	if len(meta) > 0 {
		fmt.Fprintf(r.out, "   %s\n", r.styles.Dim.Render(strings.Join(meta, " | ")))
	}

	for _, c := range res.MatchedChunks {
		label := fmt.Sprintf("[%d]", c.ChunkIndex)
		if c.ChunkIndex < 0 {
			label = "[snippet]"
		}
		if c.Heading != "" {
			label += " " + c.Heading
		}
		fmt.Fprintf(r.out, "   %s %s\n",
			r.styles.Heading.Render(label),
			preview(c.Content, snippetPreview))
	}

	for _, h := range res.Highlights {
		fmt.Fprintf(r.out, "   %s\n", r.styles.Dim.Render("> "+h))
	}

	fmt.Fprintln(r.out)
}

// Suggestions renders query completion candidates.
func (r *Renderer) Suggestions(partial string, suggestions []string) {
	if len(suggestions) == 0 {
		fmt.Fprintf(r.out, "No suggestions for %q\n", partial)
		return
	}
	for _, s := range suggestions {
		fmt.Fprintf(r.out, "%s\n", s)
	}
}

// Item renders a stored item with optional chunks.
func (r *Renderer) Item(item *store.Item, chunks []*store.Chunk) {
	fmt.Fprintf(r.out, "%s\n", r.styles.Title.Render(item.Title))
	fmt.Fprintf(r.out, "%s %s\n", r.styles.Label.Render("id:"), item.ID)
	fmt.Fprintf(r.out, "%s %s\n", r.styles.Label.Render("source:"), string(item.SourceType))
	if item.SourcePath != "" {
		fmt.Fprintf(r.out, "%s %s\n", r.styles.Label.Render("path:"), item.SourcePath)
	}
	if len(item.Categories) > 0 {
		fmt.Fprintf(r.out, "%s %s\n", r.styles.Label.Render("categories:"),
			strings.Join(item.Categories, ", "))
	}
	if len(item.Tags) > 0 {
		fmt.Fprintf(r.out, "%s %s\n", r.styles.Label.Render("tags:"),
			strings.Join(item.Tags, ", "))
	}
	fmt.Fprintf(r.out, "%s %s\n", r.styles.Label.Render("updated:"),
		item.UpdatedAt.Format(time.RFC3339))

	fmt.Fprintf(r.out, "\n%s\n", item.Content)

	if len(chunks) > 0 {
		fmt.Fprintf(r.out, "\n%s\n", r.styles.Heading.Render(
			fmt.Sprintf("%d chunk(s)", len(chunks))))
		for _, c := range chunks {
			heading := c.Heading
			if heading == "" {
				heading = "(no heading)"
			}
			fmt.Fprintf(r.out, "  [%d] %s %s\n", c.ChunkIndex, heading,
				r.styles.Dim.Render(fmt.Sprintf("bytes %d-%d", c.StartPosition, c.EndPosition)))
		}
	}
}

// ItemList renders one line per item, newest first.
func (r *Renderer) ItemList(items []*store.Item) {
	if len(items) == 0 {
		fmt.Fprintln(r.out, "No items")
		return
	}
	for _, item := range items {
		fmt.Fprintf(r.out, "%s  %s %s\n",
			r.styles.Dim.Render(item.ID),
			r.styles.Title.Render(item.Title),
			r.styles.Label.Render(fmt.Sprintf("(%s, %s)",
				item.SourceType, item.UpdatedAt.Format("2006-01-02"))))
	}
}

// Stats renders store and index statistics.
func (r *Renderer) Stats(stats *store.StoreStats, engineStats search.EngineStats) {
	fmt.Fprintf(r.out, "%s\n", r.styles.Heading.Render("Store"))
	fmt.Fprintf(r.out, "  items:         %d\n", stats.Items)
	fmt.Fprintf(r.out, "  chunks:        %d\n", stats.Chunks)
	fmt.Fprintf(r.out, "  categories:    %d\n", stats.Categories)
	fmt.Fprintf(r.out, "  tags:          %d\n", stats.Tags)
	fmt.Fprintf(r.out, "  relationships: %d\n", stats.Relationships)

	fmt.Fprintf(r.out, "%s\n", r.styles.Heading.Render("Indices"))
	fmt.Fprintf(r.out, "  inverted chunks: %d\n", engineStats.IndexedChunks)
	fmt.Fprintf(r.out, "  vector chunks:   %d\n", engineStats.VectorChunks)
	fmt.Fprintf(r.out, "  chunk search:    %s\n", readiness(engineStats.ChunkIndexReady))
	fmt.Fprintf(r.out, "  item fallback:   %s\n", readiness(engineStats.ItemIndexReady))
}

// Integrity renders an integrity report, flagging orphaned rows.
func (r *Renderer) Integrity(report *store.IntegrityReport) {
	if report.Clean() {
		fmt.Fprintf(r.out, "%s\n", "Integrity: clean")
		return
	}
	fmt.Fprintf(r.out, "%s\n", r.styles.Warning.Render("Integrity: issues found"))
	fmt.Fprintf(r.out, "  orphaned chunks:         %d\n", report.OrphanedChunks)
	fmt.Fprintf(r.out, "  orphaned category links: %d\n", report.OrphanedCategoryLinks)
	fmt.Fprintf(r.out, "  orphaned tag links:      %d\n", report.OrphanedTagLinks)
	fmt.Fprintf(r.out, "  orphaned relationships:  %d\n", report.OrphanedRelationships)
}

// Error renders an error message.
func (r *Renderer) Error(err error) {
	fmt.Fprintf(r.out, "%s %v\n", r.styles.Error.Render("error:"), err)
}

func readiness(ready bool) string {
	if ready {
		return "ready"
	}
	return "empty"
}

// preview flattens and truncates content for one-line display.
func preview(content string, limit int) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= limit {
		return content
	}
	cut := limit
	for cut > 0 && content[cut]&0xC0 == 0x80 {
		cut--
	}
	return content[:cut] + "..."
}
