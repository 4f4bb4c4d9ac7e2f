// Package event defines the source-agnostic event schema shared by every
// upstream normalizer, plus the request-scoped query and page types.
package event

import (
	"encoding/json"
	"time"
)

// SourceID identifies one upstream event provider.
type SourceID string

// String returns the raw identifier.
func (s SourceID) String() string {
	return string(s)
}

// RawItem is one upstream item exactly as the provider returned it.
type RawItem = json.RawMessage

// ThemeRef is a reference into the shared theme taxonomy.
type ThemeRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id,omitempty"`
}

// Location holds the optional address parts of an event.
type Location struct {
	Country *string `json:"country"`
	City    *string `json:"city"`
	Address *string `json:"address"`
}

// Payload carries source-specific fields that have no unified counterpart.
type Payload struct {
	Source SourceID       `json:"source"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Event is the unified representation all normalizers converge to.
// Optional values are pointers so that absent upstream data serializes as null.
type Event struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`

	// All timestamps are UTC.
	Start             *time.Time `json:"start"`
	End               *time.Time `json:"end"`
	RegistrationStart *time.Time `json:"registration_start"`
	RegistrationEnd   *time.Time `json:"registration_end"`

	Location  Location   `json:"location"`
	URL       *string    `json:"url"`
	PosterURL *string    `json:"poster_url"`
	Themes    []ThemeRef `json:"themes"`
	Organizer *string    `json:"organizer"`

	Source  SourceID `json:"source"`
	Payload Payload  `json:"payload"`
}

// PageMeta describes where a page sits in the combined result set.
type PageMeta struct {
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`

	// Partial is set only when degraded pages are enabled and at least one
	// source failed; FailedSources lists them.
	Partial       bool       `json:"partial,omitempty"`
	FailedSources []SourceID `json:"failed_sources,omitempty"`
}

// Page is the response envelope for list operations.
type Page struct {
	Data []Event  `json:"data"`
	Meta PageMeta `json:"meta"`
}
