// Package pagination implements opaque cursor paging for list endpoints.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Request binds the standard paging query parameters.
type Request struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Limit returns the effective page size, clamped to [1, maxPageSize].
func (r Request) Limit() int {
	size := r.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return size
}

// Cursor marks the position after the last returned row.
type Cursor struct {
	ID string `json:"id"`
}

// PageInfo is returned alongside every paged collection.
type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// EncodeCursor serializes a cursor into an opaque page token.
func EncodeCursor(cursor Cursor) string {
	b, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeCursor parses a page token produced by EncodeCursor.
// An empty token yields a nil cursor, meaning "from the start".
func DecodeCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// BuildPageInfo trims an over-fetched result slice (limit+1 rows) and
// produces the paging metadata for the response.
func BuildPageInfo[T any](items []*T, limit int, lastID func(*T) string) ([]*T, PageInfo) {
	if len(items) <= limit {
		return items, PageInfo{HasMore: false}
	}

	items = items[:limit]
	return items, PageInfo{
		HasMore:       true,
		NextPageToken: EncodeCursor(Cursor{ID: lastID(items[len(items)-1])}),
	}
}
