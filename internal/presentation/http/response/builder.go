package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/brewline/pkg/errorbank"
)

// Builder helps construct consistent HTTP responses.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// Pagination is rendered under meta.pagination for paged listings.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// WithPagination records paging metadata.
func (b *Builder) WithPagination(page, perPage, total int) *Builder {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return b.WithMeta("pagination", Pagination{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   pages,
		HasNext: page < pages,
	})
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	if b.err != nil {
		return b.buildError()
	}
	return b.buildSuccess()
}

func (b *Builder) buildSuccess() error {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	payload := struct {
		Success bool           `json:"success"`
		Data    any            `json:"data,omitempty"`
		Meta    map[string]any `json:"meta,omitempty"`
	}{
		Success: true,
		Data:    b.data,
		Meta:    b.meta,
	}
	return b.ctx.JSON(b.status, payload)
}

func (b *Builder) buildError() error {
	appErr := errorbank.From(b.err)
	status := b.status
	if status < 400 {
		status = appErr.StatusCode()
	}
	if appErr.Kind() == errorbank.KindInternal {
		// Internal causes never reach the body; keep them in the request log.
		b.ctx.Set(ErrorContextKey, appErr)
	}

	payload := struct {
		Success bool           `json:"success"`
		Kind    string         `json:"kind"`
		Errors  []string       `json:"errors"`
		Details map[string]any `json:"details,omitempty"`
		Meta    map[string]any `json:"meta,omitempty"`
	}{
		Success: false,
		Kind:    string(appErr.Kind()),
		Errors:  appErr.Messages(),
		Details: appErr.Details(),
		Meta:    b.meta,
	}
	return b.ctx.JSON(status, payload)
}

// ErrorContextKey holds the internal error rendered for the current request, if any.
const ErrorContextKey = "response.internal_error"
