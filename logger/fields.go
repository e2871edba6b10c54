package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across geocat.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldObjectID = "object_id"
	FieldRecordID = "record_id"
	FieldSourceID = "source_id"
	FieldJobID    = "job_id"
	FieldGUID     = "guid"

	// Components
	FieldComponent = "component"
	FieldStage     = "stage"

	// Operations
	FieldOperation = "operation"
	FieldURL       = "url"
	FieldFormat    = "format"
	FieldProfile   = "profile"

	// Errors
	FieldError = "error"
	FieldLine  = "line"

	// Counts and sizes
	FieldCount = "count"
	FieldSize  = "size"

	// Status
	FieldStatus = "status"
	FieldState  = "state"

	// Files and paths
	FieldFile = "file"
	FieldPath = "path"
)

// Context keys for propagating logging context
type contextKey string

const (
	jobIDKey    contextKey = "logger_job_id"
	objectIDKey contextKey = "logger_object_id"
	sourceIDKey contextKey = "logger_source_id"
)

// WithJobID adds a job ID to the context for logging
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// WithObjectID adds a harvest object ID to the context for logging
func WithObjectID(ctx context.Context, objectID string) context.Context {
	return context.WithValue(ctx, objectIDKey, objectID)
}

// WithSourceID adds a harvest source ID to the context for logging
func WithSourceID(ctx context.Context, sourceID string) context.Context {
	return context.WithValue(ctx, sourceIDKey, sourceID)
}

// FromContext returns a logger enriched with any identities stored in ctx
func FromContext(ctx context.Context) *zap.SugaredLogger {
	log := Logger
	if jobID, ok := ctx.Value(jobIDKey).(string); ok {
		log = log.With(FieldJobID, jobID)
	}
	if objectID, ok := ctx.Value(objectIDKey).(string); ok {
		log = log.With(FieldObjectID, objectID)
	}
	if sourceID, ok := ctx.Value(sourceIDKey).(string); ok {
		log = log.With(FieldSourceID, sourceID)
	}
	return log
}
