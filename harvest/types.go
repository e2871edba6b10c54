// Package harvest implements the geospatial metadata import pipeline:
// the per-document state machine, GUID-based versioning, and the
// mapping of parsed ISO metadata into normalized catalog records.
package harvest

import (
	"time"
)

// Status is the per-object import decision, stored as an extra on the
// harvest object by the gather stage.
type Status string

const (
	StatusNew       Status = "new"
	StatusChange    Status = "change"
	StatusDelete    Status = "delete"
	StatusUnchanged Status = "unchanged"
)

// Extra keys persisted on harvest objects.
const (
	ExtraStatus           = "status"
	ExtraOriginalDocument = "original_document"
	ExtraOriginalFormat   = "original_format"
)

// Pipeline stage tags attached to recorded object errors.
const (
	StageImport     = "Import"
	StageValidation = "Validation"
)

// Source is a remote catalog endpoint documents are harvested from.
type Source struct {
	ID       string
	URL      string
	Title    string
	OwnerOrg string
	Config   string // per-source JSON configuration blob
}

// Job is one harvest run against a source.
type Job struct {
	ID       string
	SourceID string
}

// Object is one version of one attempt to ingest a document. Within a
// source at most one object per GUID is current; globally no two
// current objects share a GUID.
type Object struct {
	ID                   string
	GUID                 string
	Content              string
	SourceID             string
	JobID                string
	MetadataModifiedDate *time.Time
	Current              bool
	RecordID             *string
	Extras               map[string]string
}

// Extra returns the value of a persisted object extra, or empty string.
func (o *Object) Extra(key string) string {
	if o.Extras == nil {
		return ""
	}
	return o.Extras[key]
}

// ObjectError is a structured pipeline failure attached to an object.
type ObjectError struct {
	ObjectID string
	Message  string
	Stage    string
	Line     *int
}
