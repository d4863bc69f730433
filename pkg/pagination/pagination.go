package pagination

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	TotalCountHeader = "X-Total-Count"
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit and offset from the query string, applying the
// default and the cap.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page.
// Returns 0 if the result would be negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// SetHeaders writes X-Total-Count and, when there are neighbouring pages, an
// RFC 8288 Link header. The body stays a plain JSON array.
func (p Params) SetHeaders(c echo.Context, total int) {
	h := c.Response().Header()
	h.Set(TotalCountHeader, strconv.Itoa(total))

	var links []string
	if p.HasNext(total) {
		links = append(links, p.link(c.Request().URL, p.NextOffset(), "next"))
	}
	if p.HasPrevious() {
		links = append(links, p.link(c.Request().URL, p.PreviousOffset(), "prev"))
	}
	if len(links) > 0 {
		h.Set("Link", strings.Join(links, ", "))
	}
}

func (p Params) link(u *url.URL, offset int, rel string) string {
	q := u.Query()
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(offset))
	return fmt.Sprintf("<%s?%s>; rel=%q", u.Path, q.Encode(), rel)
}
