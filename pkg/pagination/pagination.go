package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Params holds the page window requested by the client. Page is 1-based.
type Params struct {
	Page    int
	PerPage int
}

// FromContext reads perPage (or per_page) and page from the query string.
func FromContext(c echo.Context) Params {
	return FromContextDefault(c, DefaultPerPage)
}

// FromContextDefault is FromContext with a caller-chosen default page size.
func FromContextDefault(c echo.Context, defaultPerPage int) Params {
	perPage, _ := strconv.Atoi(c.QueryParam("perPage"))
	if perPage <= 0 {
		perPage, _ = strconv.Atoi(c.QueryParam("per_page"))
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	return New(page, perPage, defaultPerPage)
}

// New clamps page and perPage into range.
func New(page, perPage, defaultPerPage int) Params {
	if defaultPerPage <= 0 {
		defaultPerPage = DefaultPerPage
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page < 1 {
		page = 1
	}
	return Params{Page: page, PerPage: perPage}
}

func (p Params) Limit() int  { return p.PerPage }
func (p Params) Offset() int { return (p.Page - 1) * p.PerPage }

// Meta is the pagination block returned with every listing.
type Meta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// NewMeta computes last_page, which is never below 1.
func NewMeta(p Params, total int) Meta {
	last := 1
	if total > 0 {
		last = (total + p.PerPage - 1) / p.PerPage
	}
	return Meta{CurrentPage: p.Page, LastPage: last, PerPage: p.PerPage, Total: total}
}

// Response wraps a paginated listing. Filters echoes the request's filters
// back to the client.
type Response struct {
	Data    interface{} `json:"data"`
	Meta    Meta        `json:"meta"`
	Filters interface{} `json:"filters,omitempty"`
}

func NewResponse(data interface{}, p Params, total int, filters interface{}) *Response {
	return &Response{Data: data, Meta: NewMeta(p, total), Filters: filters}
}
