package spotify

import (
	"context"
	"strings"
)

// Search runs a catalog search for the given types.
func (c *Client) Search(ctx context.Context, query string, types []SearchType, p PageParams) (*SearchResult, error) {
	kinds := make([]string, 0, len(types))
	for _, t := range types {
		kinds = append(kinds, string(t))
	}

	q := p.values()
	q.Set("q", query)
	q.Set("type", strings.Join(kinds, ","))

	var res SearchResult
	if err := c.get(ctx, "/search", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
