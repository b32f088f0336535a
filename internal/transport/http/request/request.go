// Package request parses path, query and body input shared by the HTTP handlers.
package request

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/brewline/internal/service/paging"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

// ID parses the :id path parameter.
func ID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithCause(err))
	}
	return id, nil
}

// Page reads the page and per_page query parameters.
func Page(c echo.Context) (paging.Request, error) {
	var page paging.Request
	err := echo.QueryParamsBinder(c).
		Int("page", &page.Page).
		Int("per_page", &page.PerPage).
		BindError()
	if err != nil {
		return paging.Request{}, errorbank.BadRequest("page and per_page must be integers", errorbank.WithCause(err))
	}
	return page, nil
}

// Int reads an optional integer query parameter.
func Int(c echo.Context, name string) (int, error) {
	var value int
	if err := echo.QueryParamsBinder(c).Int(name, &value).BindError(); err != nil {
		return 0, errorbank.BadRequest(name+" must be an integer", errorbank.WithCause(err))
	}
	return value, nil
}

// Bool reads an optional boolean query parameter. Absent parameters yield nil.
func Bool(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errorbank.BadRequest(name+" must be a boolean", errorbank.WithCause(err))
	}
	return &value, nil
}

// DateRange reads start_date and end_date (YYYY-MM-DD, local time). The end date is
// inclusive, so the returned end is midnight of the following day. Absent bounds are zero.
func DateRange(c echo.Context) (time.Time, time.Time, error) {
	start, err := date(c, "start_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := date(c, "end_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.IsZero() {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// Bind decodes the JSON body into dst.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errorbank.BadRequest("invalid request body", errorbank.WithCause(err))
	}
	return nil
}

func date(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
	if err != nil {
		return time.Time{}, errorbank.BadRequest(name+" must be formatted as YYYY-MM-DD", errorbank.WithCause(err))
	}
	return t, nil
}
