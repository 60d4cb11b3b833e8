package tool

import (
	"context"
	"encoding/json"
	"errors"
)

const defaultSearchLimit = 10

var errHistoryUnavailable = errors.New("history search is not available")

var searchHistorySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "Search query"},
		"limit": {"type": "integer", "description": "Max results (default 10)"}
	},
	"required": ["query"]
}`)

// NewSearchHistoryTool creates the search_history tool.
func NewSearchHistoryTool(searcher HistorySearcher) *BaseTool {
	return NewBaseTool(SearchHistory, "Search past Claude Code chat sessions", searchHistorySchema,
		func(ctx context.Context, input json.RawMessage) (*Result, error) {
			if searcher == nil {
				return nil, errHistoryUnavailable
			}
			var params struct {
				Query string  `json:"query"`
				Limit float64 `json:"limit"`
			}
			if err := json.Unmarshal(input, &params); err != nil {
				return nil, err
			}
			limit := int(params.Limit)
			if limit <= 0 {
				limit = defaultSearchLimit
			}
			results, err := searcher.Search(ctx, params.Query, limit)
			if err != nil {
				return nil, err
			}
			return JSONResult(results)
		})
}
