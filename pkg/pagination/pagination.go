package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Params holds skip/limit paging as the backing services expect it.
type Params struct {
	Limit int
	Skip  int
}

// FromContext extracts pagination parameters from the echo context. "offset"
// is accepted as an alias of "skip".
func FromContext(c echo.Context) Params {
	return FromContextMax(c, MaxLimit)
}

// FromContextMax is FromContext with a caller-chosen cap, for services whose
// list endpoints reject larger pages.
func FromContextMax(c echo.Context, max int) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > max {
		limit = max
	}

	skip, err := strconv.Atoi(c.QueryParam("skip"))
	if err != nil {
		skip, _ = strconv.Atoi(c.QueryParam("offset"))
	}
	if skip < 0 {
		skip = 0
	}

	return Params{Limit: limit, Skip: skip}
}

// Response wraps a paginated API response.
type Response struct {
	Items   interface{} `json:"items"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Skip    int         `json:"skip"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(items interface{}, total int, p Params) *Response {
	return &Response{
		Items:   items,
		Total:   total,
		Limit:   p.Limit,
		Skip:    p.Skip,
		HasMore: p.HasNext(total),
	}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Skip+p.Limit < total
}

// NextSkip returns the skip value for the next page.
func (p Params) NextSkip() int {
	return p.Skip + p.Limit
}
