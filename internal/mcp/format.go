package mcp

import (
	"github.com/knowmcp/knowmcp/internal/search"
)

// toSearchOutput converts an engine response to the tool output schema.
func toSearchOutput(resp *search.Response) SearchKnowledgeOutput {
	output := SearchKnowledgeOutput{
		Query:   resp.Query,
		Total:   resp.Total,
		Results: make([]ResultOutput, 0, len(resp.Results)),
	}

	for _, r := range resp.Results {
		output.Results = append(output.Results, toResultOutput(r))
	}

	if resp.GroupedByCategory != nil {
		output.Groups = make(map[string][]ResultOutput, len(resp.GroupedByCategory))
		for _, category := range resp.CategoryOrder {
			group := resp.GroupedByCategory[category]
			converted := make([]ResultOutput, 0, len(group))
			for _, r := range group {
				converted = append(converted, toResultOutput(r))
			}
			output.Groups[category] = converted
		}
	}

	return output
}

// toResultOutput converts a single result.
func toResultOutput(r *search.Result) ResultOutput {
	out := ResultOutput{
		ID:            r.Item.ID,
		Title:         r.Item.Title,
		Score:         r.RelevanceScore,
		SourceType:    string(r.Item.SourceType),
		Categories:    r.Item.Categories,
		Tags:          r.Item.Tags,
		Content:       r.Item.Content,
		MatchedFields: r.MatchedFields,
		Highlights:    r.Highlights,
	}
	out.MatchedChunks = toChunkOutputs(r.MatchedChunks)
	out.ContextChunks = toChunkOutputs(r.ContextChunks)
	return out
}

func toChunkOutputs(chunks []*search.ChunkResult) []ChunkOutput {
	if len(chunks) == 0 {
		return nil
	}
	out := make([]ChunkOutput, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, ChunkOutput{
			Heading:    c.Heading,
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Score:      c.Score,
		})
	}
	return out
}
