package backend

import (
	"encoding/json"
	"fmt"

	"github.com/idest-edu/assignment-gateway/internal/models"
)

// Page is the single canonical listing shape. The backend answers list
// endpoints with either a paginated object or a bare array; both decode
// into this, and nothing past this boundary branches on response shape.
type Page[T any] struct {
	Items      []T                `json:"data"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
}

// paginatedEnvelope matches the backend's paginated variant exactly; used
// only as a decode probe.
type paginatedEnvelope[T any] struct {
	Data       []T                `json:"data"`
	Pagination *models.Pagination `json:"pagination"`
}

// DecodePage decodes a list response into the canonical Page shape.
// The raw payload is either `{"data": [...], "pagination": {...}}` or a
// bare `[...]`; anything else is an error, not a silent empty list.
func DecodePage[T any](raw json.RawMessage) (*Page[T], error) {
	if len(raw) == 0 || string(raw) == "null" {
		return &Page[T]{Items: []T{}}, nil
	}

	var env paginatedEnvelope[T]
	if err := json.Unmarshal(raw, &env); err == nil && env.Pagination != nil {
		return &Page[T]{Items: env.Data, Pagination: env.Pagination}, nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("unrecognized list response shape: %w", err)
	}
	return &Page[T]{Items: items}, nil
}
