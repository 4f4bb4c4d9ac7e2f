package aggregator

import (
	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/Sternrassler/event-aggregator/pkg/pagination"
)

// Assemble wraps data with pagination metadata. totalItems is the sum of
// the (capped) source totals. Data is never nil.
func Assemble(data []event.Event, totalItems, limit, page int) event.Page {
	if data == nil {
		data = []event.Event{}
	}
	return event.Page{
		Data: data,
		Meta: pagination.NewMeta(totalItems, limit, page),
	}
}
