// Package storage defines the persistence interface for crawled API
// specifications and detected mismatches. The sqlite subpackage
// provides the default backend.
package storage

import (
	"context"

	"github.com/isyncso/apidiag/internal/types"
)

// MismatchFilter narrows a mismatch listing. Zero values mean no
// constraint.
type MismatchFilter struct {
	APIID  string
	Status types.MismatchStatus
	Limit  int
}

// Store persists specifications and mismatches. Both record kinds are
// idempotently regenerable from their sources, so upsert semantics are
// last-write-wins by key.
type Store interface {
	// UpsertSpec stores the current specification snapshot for an API,
	// replacing any previous one.
	UpsertSpec(ctx context.Context, spec *types.CrawledAPISpec) error

	// GetSpec returns the stored specification for an API, or nil when
	// none has been crawled yet.
	GetSpec(ctx context.Context, apiID string) (*types.CrawledAPISpec, error)

	// ListSpecs returns every stored specification.
	ListSpecs(ctx context.Context) ([]*types.CrawledAPISpec, error)

	// UpsertMismatch stores a mismatch by id.
	UpsertMismatch(ctx context.Context, mismatch *types.APIMismatch) error

	// GetMismatch returns a mismatch by id, or nil when absent.
	GetMismatch(ctx context.Context, id string) (*types.APIMismatch, error)

	// ListMismatches returns mismatches matching the filter, most
	// recently detected first.
	ListMismatches(ctx context.Context, filter MismatchFilter) ([]*types.APIMismatch, error)

	// Close releases the underlying resources.
	Close() error
}
