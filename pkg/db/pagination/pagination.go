package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Pagination carries page-token query parameters.
type Pagination struct {
	PageToken string `form:"page_token" json:"page_token"`
	PageSize  int32  `form:"page_size" json:"page_size"`
}

// PageInfo is the paging section of a list response.
type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
}

// Resolve decodes the token into an offset and clamps the page size.
func (p Pagination) Resolve() (offset int, limit int, err error) {
	limit = int(p.PageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	token := strings.TrimSpace(p.PageToken)
	if token == "" {
		return 0, limit, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid page token")
	}
	offset, err = strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("invalid page token")
	}
	return offset, limit, nil
}

// NextToken encodes the offset of the next page, or "" when done.
func NextToken(offset, limit, fetched int) string {
	if fetched < limit {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset + limit)))
}
