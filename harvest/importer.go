package harvest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spatialworks/geocat/catalog"
	"github.com/spatialworks/geocat/config"
	"github.com/spatialworks/geocat/errors"
	"github.com/spatialworks/geocat/iso"
	"github.com/spatialworks/geocat/validation"
)

// Importer drives the per-document import pipeline: validation,
// parsing, mapping, versioning reconciliation and catalog persistence.
// All failures are recorded on the harvest object; Import itself only
// reports success or failure.
type Importer struct {
	objects    *ObjectStore
	catalog    catalog.Store
	names      catalog.NameGenerator
	mapper     *Mapper
	filter     *FormatFilter
	cfg        config.HarvestConfig
	extensions []Extension
	logger     *zap.SugaredLogger
}

// NewImporter wires the pipeline. extensions run in the given order
// for every document; a nil logger disables logging.
func NewImporter(
	objects *ObjectStore,
	catalogStore catalog.Store,
	names catalog.NameGenerator,
	mapper *Mapper,
	cfg config.HarvestConfig,
	extensions []Extension,
	logger *zap.SugaredLogger,
) *Importer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Importer{
		objects:    objects,
		catalog:    catalogStore,
		names:      names,
		mapper:     mapper,
		filter:     NewFormatFilter(cfg.AcceptedFormats),
		cfg:        cfg,
		extensions: extensions,
		logger:     logger,
	}
}

// Import runs the pipeline for one harvest object. force reimports the
// document even when it appears unchanged, skipping the prior-object
// retirement step. The return value reports success; the recorded
// object errors carry the details of a failure.
func (imp *Importer) Import(ctx context.Context, objectID string, force bool) bool {
	log := imp.logger.With("object_id", objectID)
	log.Debugw("Import stage for harvest object")

	obj, err := imp.objects.GetObject(ctx, objectID)
	if err != nil {
		log.Errorw("No harvest object received", "error", err)
		return false
	}

	source, err := imp.objects.GetSource(ctx, obj.SourceID)
	if err != nil {
		log.Errorw("Could not load harvest source", "error", err)
		return false
	}
	job, err := imp.objects.GetJob(ctx, obj.JobID)
	if err != nil {
		log.Errorw("Could not load harvest job", "error", err)
		return false
	}

	sourceConfig, err := config.ParseSourceConfig(source.Config)
	if err != nil {
		imp.recordError(ctx, obj.ID, "Error parsing source configuration: "+err.Error(), StageImport, nil)
		return false
	}

	status := Status(obj.Extra(ExtraStatus))
	if force {
		status = StatusChange
	}

	var previous *Object
	if obj.GUID != "" {
		previous, err = imp.objects.CurrentObject(ctx, obj.GUID, obj.SourceID)
		if err != nil && !errors.IsNotFoundError(err) {
			log.Errorw("Could not look up current object", "error", err)
			return false
		}
	}

	if status == StatusDelete {
		return imp.deleteRecord(ctx, obj, previous, log)
	}

	content, transformed, ok := imp.resolveContent(ctx, obj, log)
	if !ok {
		return false
	}
	obj.Content = content

	// Profile validators only apply to documents harvested as ISO.
	// Output of the transform chain is taken as-is.
	if !transformed && !imp.validate(ctx, obj, sourceConfig, log) {
		return false
	}

	values, err := iso.Parse([]byte(obj.Content))
	if err != nil {
		imp.recordError(ctx, obj.ID,
			fmt.Sprintf("Error parsing ISO document for object %s: %s", obj.ID, err), StageImport, nil)
		return false
	}

	// Retire the prior representation. Under force the prior object is
	// left current; a second current object for the GUID can result.
	if previous != nil && !force {
		if err := imp.objects.SetCurrent(ctx, previous.ID, false); err != nil {
			log.Errorw("Could not retire previous object", "error", err)
			return false
		}
	}

	if !imp.reconcileGUID(ctx, obj, values, log) {
		return false
	}

	modified, err := parseReferenceDate(values.MetadataDate)
	if err != nil {
		imp.recordError(ctx, obj.ID,
			fmt.Sprintf("Could not extract reference date for object %s (%s)", obj.ID, values.MetadataDate),
			StageImport, nil)
		return false
	}
	obj.MetadataModifiedDate = &modified
	if err := imp.objects.SetMetadataModifiedDate(ctx, obj.ID, modified); err != nil {
		log.Errorw("Could not store reference date", "error", err)
		return false
	}

	rec, ok := imp.buildRecord(ctx, obj, source, job, previous, sourceConfig, values, log)
	if !ok {
		return false
	}

	rec.Resources = imp.filterResources(rec.Resources)
	if len(rec.Resources) == 0 {
		if status == StatusChange && previous != nil && previous.RecordID != nil {
			if err := imp.catalog.Delete(ctx, *previous.RecordID); err != nil && !errors.IsNotFoundError(err) {
				log.Errorw("Could not delete record with no accepted resources", "error", err)
			}
		}
		log.Infow("No accepted resources after filtering, not importing")
		return false
	}

	switch status {
	case StatusNew:
		return imp.createRecord(ctx, obj, rec, force, log)
	case StatusChange:
		return imp.changeRecord(ctx, obj, previous, sourceConfig, rec, force, log)
	default:
		log.Errorw("Unknown object status", "status", string(status))
		return false
	}
}

// deleteRecord handles the delete status: remove the linked catalog
// record and succeed, tolerating a record that is already gone.
func (imp *Importer) deleteRecord(ctx context.Context, obj, previous *Object, log *zap.SugaredLogger) bool {
	recordID := obj.RecordID
	if recordID == nil && previous != nil {
		recordID = previous.RecordID
	}
	if recordID == nil {
		log.Infow("Delete for object with no linked record, nothing to do")
		return true
	}

	if err := imp.catalog.Delete(ctx, *recordID); err != nil {
		if errors.IsNotFoundError(err) {
			log.Infow("Record to delete was already gone", "record_id", *recordID)
			return true
		}
		imp.recordError(ctx, obj.ID, "Error deleting record: "+err.Error(), StageImport, nil)
		return false
	}
	log.Infow("Deleted record", "record_id", *recordID)
	return true
}

// resolveContent runs the transform chain for alternate-format
// documents and verifies content is present. The second return value
// reports whether the content came from a transform extension.
func (imp *Importer) resolveContent(ctx context.Context, obj *Object, log *zap.SugaredLogger) (string, bool, bool) {
	originalDocument := obj.Extra(ExtraOriginalDocument)
	originalFormat := obj.Extra(ExtraOriginalFormat)

	if originalDocument != "" && originalFormat != "" {
		var transformed []byte
		for _, ext := range imp.extensions {
			out, err := ext.TransformToISO(ctx, []byte(originalDocument), originalFormat)
			if err != nil {
				log.Warnw("Transform extension failed", "error", err)
				continue
			}
			if out != nil {
				transformed = out
				break
			}
		}
		if transformed == nil {
			imp.recordError(ctx, obj.ID, "Transformation to ISO failed", StageImport, nil)
			return "", false, false
		}
		if err := imp.objects.SetContent(ctx, obj.ID, string(transformed)); err != nil {
			log.Errorw("Could not store transformed content", "error", err)
			return "", false, false
		}
		return string(transformed), true, true
	}

	if strings.TrimSpace(obj.Content) == "" {
		imp.recordError(ctx, obj.ID, fmt.Sprintf("Empty content for object %s", obj.ID), StageImport, nil)
		return "", false, false
	}
	return obj.Content, false, true
}

// validate runs the configured profile validators plus any extension
// contributions, recording every finding. Validation failures abort
// unless an override permits continuing.
func (imp *Importer) validate(ctx context.Context, obj *Object, sourceConfig config.SourceConfig, log *zap.SugaredLogger) bool {
	profiles := imp.cfg.ValidatorProfiles
	if len(sourceConfig.ValidatorProfiles) > 0 {
		profiles = sourceConfig.ValidatorProfiles
	}
	for _, ext := range imp.extensions {
		profiles = append(profiles, ext.ExtraValidators()...)
	}

	validators, err := validation.NewValidators(profiles)
	if err != nil {
		imp.recordError(ctx, obj.ID, err.Error(), StageValidation, nil)
		return false
	}

	valid, profileTitle, findings := validators.IsValid([]byte(obj.Content))
	for _, f := range findings {
		imp.recordError(ctx, obj.ID, profileTitle+": "+f.Message, StageValidation, f.Line)
	}
	if valid {
		return true
	}

	if imp.cfg.ContinueOnValidationErrors || sourceConfig.ContinueOnValidationErrors {
		log.Infow("Document has validation errors, but importing anyway as configured")
		return true
	}
	return false
}

// reconcileGUID adopts the document's own GUID when it differs from
// the assigned one, refusing a GUID already held current elsewhere.
// Objects with no GUID at all get a content fingerprint as identity.
func (imp *Importer) reconcileGUID(ctx context.Context, obj *Object, values *iso.Values, log *zap.SugaredLogger) bool {
	if values.GUID != "" && values.GUID != obj.GUID {
		otherID, err := imp.objects.OtherCurrentObjectID(ctx, values.GUID, obj.ID)
		if err == nil {
			imp.recordError(ctx, obj.ID,
				fmt.Sprintf("Object %s already has this guid %s", otherID, values.GUID), StageImport, nil)
			return false
		}
		if !errors.IsNotFoundError(err) {
			log.Errorw("Could not check for conflicting guid", "error", err)
			return false
		}
		if err := imp.objects.SetGUID(ctx, obj.ID, values.GUID); err != nil {
			log.Errorw("Could not adopt document guid", "error", err)
			return false
		}
		obj.GUID = values.GUID
	}

	if obj.GUID == "" {
		sum := md5.Sum([]byte(obj.Content))
		guid := hex.EncodeToString(sum[:])
		if err := imp.objects.SetGUID(ctx, obj.ID, guid); err != nil {
			log.Errorw("Could not assign fingerprint guid", "error", err)
			return false
		}
		obj.GUID = guid
	}
	return true
}

// buildRecord maps the parsed values and runs the record-mutation
// chain. A chain that yields no record aborts the import with only a
// log line; every other failure is recorded.
func (imp *Importer) buildRecord(
	ctx context.Context,
	obj *Object,
	source *Source,
	job *Job,
	previous *Object,
	sourceConfig config.SourceConfig,
	values *iso.Values,
	log *zap.SugaredLogger,
) (*catalog.Record, bool) {
	var existing *catalog.Record
	if previous != nil && previous.RecordID != nil {
		var err error
		existing, err = imp.catalog.Get(ctx, *previous.RecordID)
		if err != nil && !errors.IsNotFoundError(err) {
			log.Errorw("Could not load existing record", "error", err)
			return nil, false
		}
	}

	rec, err := imp.mapper.Map(ctx, values, &MapContext{
		Object:         obj,
		Source:         source,
		Job:            job,
		ExistingRecord: existing,
		SourceConfig:   sourceConfig,
		Names:          imp.names,
		Errors:         imp.objects,
	})
	if err != nil {
		imp.recordError(ctx, obj.ID, "Error building record: "+err.Error(), StageImport, nil)
		return nil, false
	}

	for _, ext := range imp.extensions {
		rec, err = ext.MutateRecord(ctx, rec, obj, values)
		if err != nil {
			imp.recordError(ctx, obj.ID, "Record mutation failed: "+err.Error(), StageImport, nil)
			return nil, false
		}
		if rec == nil {
			break
		}
	}
	if rec == nil {
		log.Infow("Record for object is empty, not continuing import")
		return nil, false
	}
	return rec, true
}

// filterResources keeps only resources whose declared format is in the
// accepted set, replacing each format with the matched segment.
func (imp *Importer) filterResources(resources []catalog.Resource) []catalog.Resource {
	var kept []catalog.Resource
	for _, res := range resources {
		if res.Format == nil {
			continue
		}
		label, ok := imp.filter.Accept(*res.Format)
		if !ok {
			continue
		}
		res.Format = &label
		kept = append(kept, res)
	}
	return kept
}

func (imp *Importer) createRecord(ctx context.Context, obj *Object, rec *catalog.Record, force bool, log *zap.SugaredLogger) bool {
	rec.ID = uuid.NewString()
	rec.State = "active"

	recordID, err := imp.catalog.Create(ctx, rec)
	if err != nil {
		if catalog.IsValidationError(err) {
			imp.recordError(ctx, obj.ID, "Validation Error: "+err.Error(), StageImport, nil)
		} else {
			imp.recordError(ctx, obj.ID, "Error creating record: "+err.Error(), StageImport, nil)
		}
		return false
	}

	return imp.commit(ctx, obj, recordID, force, log, "Created new record")
}

func (imp *Importer) changeRecord(
	ctx context.Context,
	obj *Object,
	previous *Object,
	sourceConfig config.SourceConfig,
	rec *catalog.Record,
	force bool,
	log *zap.SugaredLogger,
) bool {
	if !force && previous != nil &&
		previous.MetadataModifiedDate != nil && obj.MetadataModifiedDate != nil &&
		!obj.MetadataModifiedDate.After(*previous.MetadataModifiedDate) {
		return imp.skipUnchanged(ctx, obj, previous, sourceConfig, log)
	}

	recordID := ""
	if previous != nil && previous.RecordID != nil {
		recordID = *previous.RecordID
	} else if obj.RecordID != nil {
		recordID = *obj.RecordID
	}
	if recordID == "" {
		imp.recordError(ctx, obj.ID, "Change status but no linked record to update", StageImport, nil)
		return false
	}

	rec.ID = recordID
	rec.State = "active"
	if _, err := imp.catalog.Update(ctx, recordID, rec); err != nil {
		if catalog.IsValidationError(err) {
			imp.recordError(ctx, obj.ID, "Validation Error: "+err.Error(), StageImport, nil)
		} else {
			imp.recordError(ctx, obj.ID, "Error updating record: "+err.Error(), StageImport, nil)
		}
		return false
	}

	return imp.commit(ctx, obj, recordID, force, log, "Updated record")
}

// skipUnchanged handles a document whose reference date has not moved
// past the prior import: no new record version is written, the prior
// object is superseded in place and the job lineage carries over.
func (imp *Importer) skipUnchanged(ctx context.Context, obj, previous *Object, sourceConfig config.SourceConfig, log *zap.SugaredLogger) bool {
	if err := imp.objects.SetJobID(ctx, obj.ID, previous.JobID); err != nil {
		log.Errorw("Could not carry job lineage forward", "error", err)
		return false
	}

	recordID := ""
	if previous.RecordID != nil {
		recordID = *previous.RecordID
		if err := imp.objects.SetRecordID(ctx, obj.ID, recordID); err != nil {
			log.Errorw("Could not link record", "error", err)
			return false
		}
	}

	if err := imp.objects.DeleteObject(ctx, previous.ID); err != nil {
		log.Errorw("Could not delete superseded object", "error", err)
		return false
	}

	if err := imp.objects.MarkCurrent(ctx, obj.ID, obj.GUID, false); err != nil {
		if errors.Is(err, errors.ErrGUIDConflict) {
			imp.recordError(ctx, obj.ID, err.Error(), StageImport, nil)
			return false
		}
		log.Errorw("Could not flag object as current", "error", err)
		return false
	}

	if recordID != "" && imp.reindexUnchanged(sourceConfig) {
		if err := imp.catalog.Reindex(ctx, recordID, obj.ID); err != nil {
			log.Warnw("Could not reindex unchanged record", "error", err)
		}
	}

	log.Infow("Document unchanged, skipping", "guid", obj.GUID)
	return true
}

func (imp *Importer) reindexUnchanged(sourceConfig config.SourceConfig) bool {
	if sourceConfig.ReindexUnchanged != nil {
		return *sourceConfig.ReindexUnchanged
	}
	return imp.cfg.ReindexUnchanged
}

// commit links the object to its record and flips it current. The
// current flag only moves after the catalog write succeeded, so a
// crash mid-pipeline never leaves a current object without a record.
func (imp *Importer) commit(ctx context.Context, obj *Object, recordID string, force bool, log *zap.SugaredLogger, message string) bool {
	if err := imp.objects.SetRecordID(ctx, obj.ID, recordID); err != nil {
		log.Errorw("Could not link record", "error", err)
		return false
	}
	if err := imp.objects.MarkCurrent(ctx, obj.ID, obj.GUID, force); err != nil {
		if errors.Is(err, errors.ErrGUIDConflict) {
			imp.recordError(ctx, obj.ID, err.Error(), StageImport, nil)
			return false
		}
		log.Errorw("Could not flag object as current", "error", err)
		return false
	}
	log.Infow(message, "record_id", recordID, "guid", obj.GUID)
	return true
}

func (imp *Importer) recordError(ctx context.Context, objectID, message, stage string, line *int) {
	if err := imp.objects.SaveObjectError(ctx, objectID, message, stage, line); err != nil {
		imp.logger.Errorw("Failed to record object error",
			"object_id", objectID,
			"error", err,
		)
	}
}

// parseReferenceDate accepts the date shapes publishers actually emit.
func parseReferenceDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty reference date")
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"2006-01",
		"2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Newf("unparseable reference date %q", value)
}
