package pagination

import "github.com/Sternrassler/event-aggregator/pkg/event"

// TotalPages returns ceil(totalItems/limit), or 0 for a non-positive limit.
func TotalPages(totalItems, limit int) int {
	if limit <= 0 || totalItems <= 0 {
		return 0
	}
	return (totalItems + limit - 1) / limit
}

// NewMeta derives the page metadata for a listing.
func NewMeta(totalItems, limit, page int) event.PageMeta {
	return event.PageMeta{
		TotalItems:  totalItems,
		TotalPages:  TotalPages(totalItems, limit),
		CurrentPage: page,
	}
}
