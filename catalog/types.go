// Package catalog defines the catalog store boundary: the normalized
// record model and the persistence interface the import pipeline
// writes through.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spatialworks/geocat/errors"
)

// Record is a catalog-ready dataset.
type Record struct {
	ID        string
	Name      string // URL-safe slug, unique across the catalog
	Title     string
	Notes     string
	URL       string
	OwnerOrg  string
	LicenseID string
	State     string
	Tags      []string
	Extras    map[string]string
	Resources []Resource
}

// Resource is one downloadable or service endpoint attached to a record.
type Resource struct {
	URL             string
	Format          *string
	Name            string
	Description     string
	LastModified    string
	LocatorProtocol string
	LocatorFunction string
	Verified        bool
	VerifiedDate    *string
	WMSLayer        *string
}

// Organization is an owning entity resolved or created through the
// catalog.
type Organization struct {
	ID    string
	Title string
}

// ValidationError carries catalog-side schema rejections. The summary
// maps field names to their failure messages.
type ValidationError struct {
	Summary map[string][]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Summary))
	for field := range e.Summary {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.Summary[field], "; ")))
	}
	return "validation error: " + strings.Join(parts, ", ")
}

// IsValidationError reports whether err is or wraps a catalog-side
// schema rejection.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Store is the catalog persistence boundary used by the import
// pipeline. Delete returns errors.ErrNotFound when the record does not
// exist; callers decide whether that is tolerable.
type Store interface {
	Create(ctx context.Context, rec *Record) (string, error)
	Update(ctx context.Context, id string, rec *Record) (string, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Record, error)
	ResolveOrCreateOrg(ctx context.Context, id, title string) (*Organization, error)

	// Reindex refreshes the harvest back-reference extra on a record
	// after an unchanged import run.
	Reindex(ctx context.Context, recordID, objectID string) error
}

// NameGenerator produces a unique, URL-safe record name from a title.
type NameGenerator interface {
	GenerateName(ctx context.Context, title string) (string, error)
}
