package httpapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// dateOnly is the short form accepted by date filters.
const dateOnly = "2006-01-02"

// listRequest is the query string of the list endpoints.
type listRequest struct {
	Page     *int   `form:"page" binding:"omitempty,min=1"`
	Limit    *int   `form:"limit" binding:"omitempty,min=1"`
	Search   string `form:"q" binding:"omitempty,max=200"`
	Themes   string `form:"themes" binding:"omitempty,max=500"`
	City     string `form:"city" binding:"omitempty,max=100"`
	DateFrom string `form:"date_from" binding:"omitempty,datefilter"`
	DateTo   string `form:"date_to" binding:"omitempty,datefilter"`
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("datefilter", validateDateFilter)
	}
}

// validateDateFilter accepts RFC3339 timestamps and YYYY-MM-DD dates.
func validateDateFilter(fl validator.FieldLevel) bool {
	_, err := parseDate(fl.Field().String())
	return err == nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected RFC3339 or YYYY-MM-DD", raw)
	}
	return t, nil
}

// parseList binds and checks the list query. Absent page and limit fall
// back to 1 and defaultLimit; limits above maxLimit are rejected.
func parseList(c *gin.Context, defaultLimit, maxLimit int) (event.Query, int, int, error) {
	var req listRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return event.Query{}, 0, 0, describeBindError(err)
	}

	page, limit := 1, defaultLimit
	if req.Page != nil {
		page = *req.Page
	}
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit > maxLimit {
		return event.Query{}, 0, 0, fmt.Errorf("limit must be at most %d", maxLimit)
	}

	q := event.Query{
		Search: strings.TrimSpace(req.Search),
		City:   strings.TrimSpace(req.City),
	}
	for _, theme := range strings.Split(req.Themes, ",") {
		if theme = strings.TrimSpace(theme); theme != "" {
			q.Themes = append(q.Themes, theme)
		}
	}
	if req.DateFrom != "" {
		from, _ := parseDate(req.DateFrom)
		q.DateFrom = &from
	}
	if req.DateTo != "" {
		to, _ := parseDate(req.DateTo)
		// A bare date includes the whole day.
		if len(req.DateTo) == len(dateOnly) {
			to = to.Add(24*time.Hour - time.Second)
		}
		q.DateTo = &to
	}
	if q.DateFrom != nil && q.DateTo != nil && q.DateTo.Before(*q.DateFrom) {
		return event.Query{}, 0, 0, fmt.Errorf("date_to must not be before date_from")
	}

	return q, limit, page, nil
}

// describeBindError turns validator output into a client-facing message.
func describeBindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid query: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := queryName(fe.Field())
		switch fe.Tag() {
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", name, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s is too long", name))
		case "datefilter":
			msgs = append(msgs, fmt.Sprintf("%s must be RFC3339 or YYYY-MM-DD", name))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", name))
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// queryName maps struct field names back to query parameter names.
func queryName(field string) string {
	switch field {
	case "Search":
		return "q"
	case "DateFrom":
		return "date_from"
	case "DateTo":
		return "date_to"
	default:
		return strings.ToLower(field)
	}
}
