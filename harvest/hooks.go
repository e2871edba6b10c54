package harvest

import (
	"context"

	"github.com/spatialworks/geocat/catalog"
	"github.com/spatialworks/geocat/iso"
)

// Extension customizes the import pipeline. Extensions run in the
// order they were registered with the Importer.
type Extension interface {
	// TransformToISO converts content in another metadata standard to
	// ISO-19139. Returning (nil, nil) means "not handled"; the next
	// extension gets a chance.
	TransformToISO(ctx context.Context, content []byte, standard string) ([]byte, error)

	// MutateRecord adjusts the mapped record before it reaches the
	// catalog. Returning (nil, nil) aborts the import of this object
	// without recording an error.
	MutateRecord(ctx context.Context, record *catalog.Record, obj *Object, values *iso.Values) (*catalog.Record, error)

	// ExtraValidators contributes additional validator profile names
	// to run for every object.
	ExtraValidators() []string
}

// BaseExtension is a no-op Extension for embedding.
type BaseExtension struct{}

func (BaseExtension) TransformToISO(context.Context, []byte, string) ([]byte, error) {
	return nil, nil
}

func (BaseExtension) MutateRecord(_ context.Context, record *catalog.Record, _ *Object, _ *iso.Values) (*catalog.Record, error) {
	return record, nil
}

func (BaseExtension) ExtraValidators() []string { return nil }

var _ Extension = BaseExtension{}
