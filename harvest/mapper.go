package harvest

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spatialworks/geocat/catalog"
	"github.com/spatialworks/geocat/config"
	"github.com/spatialworks/geocat/errors"
	"github.com/spatialworks/geocat/iso"
	"github.com/spatialworks/geocat/probe"
)

// maxTagLength is the catalog's tag length cap; longer tags are
// truncated, not dropped.
const maxTagLength = 50

// ErrorRecorder persists structured pipeline findings on a harvest
// object. ObjectStore satisfies it.
type ErrorRecorder interface {
	SaveObjectError(ctx context.Context, objectID, message, stage string, line *int) error
}

// MapContext carries the per-object surroundings the mapper needs
// beyond the parsed field values.
type MapContext struct {
	Object *Object
	Source *Source
	Job    *Job

	// ExistingRecord is the catalog record currently linked to this
	// GUID, nil on first import.
	ExistingRecord *catalog.Record

	SourceConfig config.SourceConfig
	Names        catalog.NameGenerator
	Errors       ErrorRecorder
}

// Mapper turns parsed metadata values into catalog records.
type Mapper struct {
	orgs   *OrgResolver
	prober *probe.Prober
	logger *zap.SugaredLogger

	// ExcludedURLs and ExcludedURLPrefixes drop known-bad resource
	// locators before classification.
	ExcludedURLs        []string
	ExcludedURLPrefixes []string
}

// NewMapper creates a Mapper. prober may be nil to disable service
// verification; a nil logger disables logging.
func NewMapper(orgs *OrgResolver, prober *probe.Prober, logger *zap.SugaredLogger) *Mapper {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Mapper{orgs: orgs, prober: prober, logger: logger}
}

// recordExtras is the structured extras model. It is flattened to the
// catalog's key/value form only at the very end of mapping.
type recordExtras struct {
	guid                   string
	spatialHarvester       bool
	spatialReferenceSystem string
	datasetReferenceDates  []iso.ReferenceDate
	metadataLanguage       string
	metadataDate           string
	coupledResource        []string
	contactEmail           string
	frequencyOfUpdate      string
	spatialDataServiceType string
	source                 string
	dateStamp              string
	metadataStandardName   string
	metadataStandardVer    string
	progress               string
	resourceType           string

	licence           string
	licenceURL        string
	hasLicenceURL     bool
	accessConstraints []string
	useConstraints    []string

	graphicPreviewFile        string
	graphicPreviewDescription string
	graphicPreviewType        string

	temporalExtentBegin string
	temporalExtentEnd   string
	temporalCoverage    string
	updateFrequency     string
	contactPoint        string

	responsibleParties []responsibleParty

	bboxEast  string
	bboxNorth string
	bboxSouth string
	bboxWest  string
	spatial   string

	additional map[string]string
	setKeys    map[string]bool
}

type responsibleParty struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

func (e *recordExtras) markSet(key string) {
	if e.setKeys == nil {
		e.setKeys = map[string]bool{}
	}
	e.setKeys[key] = true
}

func (e *recordExtras) isSet(key string) bool { return e.setKeys[key] }

// flatten serializes the structured extras into the catalog's flat
// key/value form. Composite values become JSON.
func (e *recordExtras) flatten() map[string]string {
	out := map[string]string{}
	put := func(key, value string) {
		out[key] = value
		e.markSet(key)
	}
	jsonPut := func(key string, value interface{}) {
		b, err := json.Marshal(value)
		if err != nil {
			return
		}
		put(key, string(b))
	}

	put("guid", e.guid)
	put("spatial_harvester", strconv.FormatBool(e.spatialHarvester))
	put("spatial-reference-system", e.spatialReferenceSystem)
	put("metadata-language", e.metadataLanguage)
	put("metadata-date", e.metadataDate)
	put("contact-email", e.contactEmail)
	put("frequency-of-update", e.frequencyOfUpdate)
	put("spatial-data-service-type", e.spatialDataServiceType)
	put("source", e.source)
	put("dateStamp", e.dateStamp)
	put("metadataStandard", e.metadataStandardName)
	put("metadataStandardVersion", e.metadataStandardVer)
	put("progress", e.progress)
	put("resource-type", e.resourceType)
	jsonPut("dataset-reference-date", referenceDatesJSON(e.datasetReferenceDates))
	jsonPut("coupled-resource", emptyIfNil(e.coupledResource))

	put("licence", e.licence)
	if e.hasLicenceURL {
		put("licence_url", e.licenceURL)
	}
	jsonPut("access_constraints", emptyIfNil(e.accessConstraints))
	jsonPut("use_constraints", emptyIfNil(e.useConstraints))

	if e.graphicPreviewFile != "" {
		put("graphic-preview-file", e.graphicPreviewFile)
	}
	if e.graphicPreviewDescription != "" {
		put("graphic-preview-description", e.graphicPreviewDescription)
	}
	if e.graphicPreviewType != "" {
		put("graphic-preview-type", e.graphicPreviewType)
	}

	if e.temporalExtentBegin != "" {
		put("temporal-extent-begin", e.temporalExtentBegin)
	}
	if e.temporalExtentEnd != "" {
		put("temporal-extent-end", e.temporalExtentEnd)
	}
	if e.temporalCoverage != "" {
		put("temporal_coverage", e.temporalCoverage)
	}
	if e.updateFrequency != "" {
		put("update_freq", e.updateFrequency)
	}
	if e.contactPoint != "" {
		put("contact_point", e.contactPoint)
	}

	if len(e.responsibleParties) > 0 {
		jsonPut("responsible-party", e.responsibleParties)
	}

	if e.spatial != "" {
		put("bbox-east-long", e.bboxEast)
		put("bbox-north-lat", e.bboxNorth)
		put("bbox-south-lat", e.bboxSouth)
		put("bbox-west-long", e.bboxWest)
		put("spatial", e.spatial)
		put("spatial_coverage", e.spatial)
	}

	for key, value := range e.additional {
		out[key] = value
	}
	return out
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type referenceDateJSON struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func referenceDatesJSON(dates []iso.ReferenceDate) []referenceDateJSON {
	out := make([]referenceDateJSON, 0, len(dates))
	for _, d := range dates {
		out = append(out, referenceDateJSON{Type: d.Type, Value: d.Value})
	}
	return out
}

// Map builds a catalog record from parsed metadata values. Warnings
// (bad bounding box values, degenerate extents) are recorded through
// mc.Errors but do not fail the mapping; only an unrecoverable problem
// such as failed name generation returns an error.
func (m *Mapper) Map(ctx context.Context, values *iso.Values, mc *MapContext) (*catalog.Record, error) {
	rec := &catalog.Record{
		Title: values.Title,
		Notes: buildNotes(values),
		Tags:  m.buildTags(values, mc.SourceConfig.DefaultTags),
	}

	if mc.Source != nil && mc.Source.OwnerOrg != "" {
		rec.OwnerOrg = mc.Source.OwnerOrg
	}

	name, err := m.resolveName(ctx, values, mc)
	if err != nil {
		return nil, err
	}
	rec.Name = name

	extras := &recordExtras{
		guid:                   mc.Object.GUID,
		spatialHarvester:       true,
		spatialReferenceSystem: values.SpatialReferenceSystem,
		datasetReferenceDates:  values.DatasetReferenceDates,
		metadataLanguage:       values.MetadataLanguage,
		metadataDate:           values.MetadataDate,
		coupledResource:        values.CoupledResource,
		contactEmail:           values.ContactEmail,
		frequencyOfUpdate:      values.FrequencyOfUpdate,
		spatialDataServiceType: values.SpatialDataServiceType,
		source:                 values.Source,
		dateStamp:              values.DateStamp,
		metadataStandardName:   values.MetadataStandardName,
		metadataStandardVer:    values.MetadataStandardVersion,
	}
	if len(values.Progress) > 0 {
		extras.progress = values.Progress[0]
	}
	if len(values.ResourceType) > 0 {
		extras.resourceType = values.ResourceType[0]
	}

	m.applyLicense(values, rec, extras)
	applyBrowseGraphic(values, extras)
	applyTemporal(values, extras)

	if err := m.applyResponsibleParties(ctx, values, rec, extras); err != nil {
		return nil, err
	}

	m.applyExtent(ctx, values, mc, extras)
	m.buildResources(ctx, values, rec, extras)

	if values.Source != "" {
		rec.URL = values.Source
	}

	m.applyDefaultExtras(mc, extras)

	rec.Extras = extras.flatten()
	return rec, nil
}

func buildNotes(values *iso.Values) string {
	if values.Abstract != "" {
		return values.Abstract
	}
	return values.Purpose + values.Lineage
}

// buildTags splits composite keyword values on " - " and "|",
// truncates each tag and appends the configured default tags.
func (m *Mapper) buildTags(values *iso.Values, defaults []string) []string {
	var tags []string
	for _, group := range [][]string{values.Tags, values.TopicCategories} {
		for _, raw := range group {
			for _, tag := range strings.Split(strings.ReplaceAll(raw, " - ", "|"), "|") {
				tag = strings.TrimSpace(tag)
				if tag == "" {
					continue
				}
				if runes := []rune(tag); len(runes) > maxTagLength {
					tag = string(runes[:maxTagLength])
				}
				tags = append(tags, tag)
			}
		}
	}
	tags = append(tags, defaults...)
	return tags
}

func (m *Mapper) resolveName(ctx context.Context, values *iso.Values, mc *MapContext) (string, error) {
	if mc.ExistingRecord != nil && mc.ExistingRecord.Title == values.Title {
		return mc.ExistingRecord.Name, nil
	}

	name, err := mc.Names.GenerateName(ctx, values.Title)
	if err != nil || name == "" {
		name, err = mc.Names.GenerateName(ctx, mc.Object.GUID)
	}
	if err != nil || name == "" {
		return "", errors.New("could not generate a unique name from the title or the GUID, a more distinctive title is needed")
	}
	return name, nil
}

func (m *Mapper) applyLicense(values *iso.Values, rec *catalog.Record, extras *recordExtras) {
	extras.useConstraints = values.UseConstraints
	extras.accessConstraints = values.AccessConstraints

	if url := ExtractFirstLicenseURL(values.UseConstraints); url != "" {
		extras.licenceURL = url
		extras.hasLicenceURL = true
	}

	id, url := SelectLicense(values.UseConstraints, values.AccessConstraints, values.CreativeCommons)
	extras.licence = id
	rec.LicenseID = id
	extras.licenceURL = url
	extras.hasLicenceURL = true
}

func applyBrowseGraphic(values *iso.Values, extras *recordExtras) {
	if len(values.BrowseGraphics) == 0 {
		return
	}
	bg := values.BrowseGraphics[0]
	extras.graphicPreviewFile = bg.File
	extras.graphicPreviewDescription = bg.Description
	extras.graphicPreviewType = bg.Type
}

func applyTemporal(values *iso.Values, extras *recordExtras) {
	if len(values.TemporalExtentBegin) > 0 {
		extras.temporalExtentBegin = values.TemporalExtentBegin[0]
	}
	if len(values.TemporalExtentEnd) > 0 {
		extras.temporalExtentEnd = values.TemporalExtentEnd[0]
	}
	if values.MetadataDate != "" {
		extras.temporalCoverage = values.MetadataDate
	}
	if len(values.DatasetReferenceDates) > 0 && values.DatasetReferenceDates[0].Value != "" {
		extras.temporalCoverage = values.DatasetReferenceDates[0].Value
	}
	extras.updateFrequency = values.FrequencyOfUpdate
	extras.contactPoint = values.ContactEmail
}

// applyResponsibleParties groups parties by organisation, prefers a
// custodian as the owning entity and resolves it through the catalog.
func (m *Mapper) applyResponsibleParties(ctx context.Context, values *iso.Values, rec *catalog.Record, extras *recordExtras) error {
	if len(values.ResponsibleOrganisations) == 0 {
		return nil
	}

	var order []string
	roles := map[string][]string{}
	for _, party := range values.ResponsibleOrganisations {
		if _, seen := roles[party.OrganisationName]; !seen {
			order = append(order, party.OrganisationName)
		}
		if !containsString(roles[party.OrganisationName], party.Role) {
			roles[party.OrganisationName] = append(roles[party.OrganisationName], party.Role)
		}
	}

	for _, name := range order {
		extras.responsibleParties = append(extras.responsibleParties, responsibleParty{
			Name:  name,
			Roles: roles[name],
		})
	}

	owner := order[0]
	for _, name := range order {
		if containsString(roles[name], "custodian") {
			owner = name
			break
		}
	}

	org, err := m.orgs.Resolve(ctx, owner)
	if err != nil {
		return errors.Wrapf(err, "resolving owning entity %q", owner)
	}
	rec.OwnerOrg = org.ID
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// applyExtent builds the GeoJSON spatial extra from the first bounding
// box. Unparseable coordinates and degenerate boxes are recorded as
// import findings; neither fails the mapping.
func (m *Mapper) applyExtent(ctx context.Context, values *iso.Values, mc *MapContext, extras *recordExtras) {
	if len(values.BBoxes) == 0 {
		m.logger.Debugw("No spatial extent defined", "object_id", mc.Object.ID)
		return
	}
	bbox := values.BBoxes[0]
	extras.bboxEast = bbox.East
	extras.bboxNorth = bbox.North
	extras.bboxSouth = bbox.South
	extras.bboxWest = bbox.West

	xmin, err1 := strconv.ParseFloat(bbox.West, 64)
	xmax, err2 := strconv.ParseFloat(bbox.East, 64)
	ymin, err3 := strconv.ParseFloat(bbox.South, 64)
	ymax, err4 := strconv.ParseFloat(bbox.North, 64)
	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			m.recordFinding(ctx, mc, "Error parsing bounding box value: "+err.Error())
			return
		}
	}

	if xmin == xmax || ymin == ymax {
		extras.spatial = PointExtent(xmin, ymin)
		m.recordFinding(ctx, mc, "Point extent defined instead of polygon")
		return
	}
	extras.spatial = PolygonExtent(xmin, ymin, xmax, ymax)
}

func (m *Mapper) recordFinding(ctx context.Context, mc *MapContext, message string) {
	if mc.Errors == nil {
		return
	}
	if err := mc.Errors.SaveObjectError(ctx, mc.Object.ID, message, StageImport, nil); err != nil {
		m.logger.Errorw("Failed to record import finding",
			"object_id", mc.Object.ID,
			"error", err,
		)
	}
}

var fnamePattern = regexp.MustCompile(`fname=(.*)&`)

// looksLikeLayerName reports whether a resource name has the shape of
// a namespaced layer name like ns:layer.
func looksLikeLayerName(name string) bool {
	return strings.Contains(name, ":") && !strings.Contains(name, " ")
}

// buildResources classifies every resource locator with an http(s)
// URL, applying description-keyword format overrides and a best-effort
// WMS verification probe. Duplicate URLs keep their first occurrence.
func (m *Mapper) buildResources(ctx context.Context, values *iso.Values, rec *catalog.Record, extras *recordExtras) {
	for _, locator := range values.AllResourceLocators() {
		url := strings.TrimSpace(locator.URL)
		if url == "" || !strings.HasPrefix(url, "http") || m.isExcluded(url) {
			continue
		}

		res := catalog.Resource{URL: url}

		format := GuessResourceFormat(url, true)

		if locator.Name == "" && strings.Contains(url, "fname=") {
			if match := fnamePattern.FindStringSubmatch(url); match != nil {
				res.Name = match[1]
				format = GuessResourceFormat(res.Name, true)
			}
		}

		format = overrideFormat(format, url, locator.Description)

		if format == "audio/basic" {
			res.Format = nil
		} else if format != "" {
			f := format
			res.Format = &f
		}

		if format == "wms" {
			m.verifyWMS(ctx, url, &res, extras)
		}

		if res.Name == "" {
			res.Name = firstNonEmpty(locator.Name, locator.Description, url, "Unnamed resource")
		}
		if locator.Name != "" {
			res.Description = locator.Description
		}
		res.LastModified = values.DateUpdated
		res.LocatorProtocol = locator.Protocol
		res.LocatorFunction = locator.Function

		if hasResourceURL(rec.Resources, url) {
			continue
		}
		rec.Resources = append(rec.Resources, res)
	}
}

// overrideFormat applies the locator-description keyword table over a
// URL-guessed format. Rules run in order and a later match overrides
// an earlier one.
func overrideFormat(format, url, description string) string {
	if strings.Contains(url, "kml") || strings.Contains(description, "(kml)") {
		format = "kml"
	}
	if strings.Contains(url, "xhtml") {
		format = "html"
	}
	if strings.Contains(description, "WMS applications") {
		format = "wms"
	}
	if strings.Contains(description, "WFS operations") {
		format = "wfs"
	}
	if strings.Contains(description, "xcel ") {
		format = "xls"
	}
	if strings.Contains(description, "csv ") || strings.Contains(description, "CSV ") {
		format = "csv"
	}
	if strings.Contains(description, "(shp)") || strings.Contains(description, "shapefile") {
		format = "shp"
	}
	if strings.Contains(description, "(ArcGIS-grid)") ||
		strings.Contains(description, "(ESRI ascii)") ||
		strings.Contains(description, "ArcInfo ascii") {
		format = "arcgrid"
	}
	return format
}

// verifyWMS probes the service's capabilities document. A successful
// probe marks the resource verified; a single-layer service also
// contributes its layer name and overwrites the document-derived
// extent with the layer's advertised bounding box. Failures only log.
func (m *Mapper) verifyWMS(ctx context.Context, url string, res *catalog.Resource, extras *recordExtras) {
	if looksLikeLayerName(res.Name) {
		layer := res.Name
		res.WMSLayer = &layer
	}
	if m.prober == nil {
		return
	}

	serviceURL := url
	if i := strings.Index(url, "?"); i >= 0 {
		serviceURL = url[:i]
	}

	result := m.prober.ProbeWMS(ctx, serviceURL)
	if !result.Verified {
		m.logger.Debugw("WMS check failed", "url", url, "reason", result.Reason)
		return
	}

	res.Verified = true
	when := result.When.Format(time.RFC3339)
	res.VerifiedDate = &when

	if len(result.Layers) == 1 {
		layer := result.Layers[0]
		res.WMSLayer = &layer.Name
		if bb := layer.BBox; bb != nil {
			extras.spatial = PolygonExtent(bb.MinX, bb.MinY, bb.MaxX, bb.MaxY)
		}
	}
}

func (m *Mapper) isExcluded(url string) bool {
	for _, excluded := range m.ExcludedURLs {
		if url == excluded {
			return true
		}
	}
	for _, prefix := range m.ExcludedURLPrefixes {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func hasResourceURL(resources []catalog.Resource, url string) bool {
	for _, r := range resources {
		if r.URL == url {
			return true
		}
	}
	return false
}

// applyDefaultExtras merges the source-configured default extras,
// expanding the identity placeholders. Unless override_extras is set,
// extras already mapped from the document win.
func (m *Mapper) applyDefaultExtras(mc *MapContext, extras *recordExtras) {
	if len(mc.SourceConfig.DefaultExtras) == 0 {
		return
	}

	// Flattening marks the mapped keys; run it once to know them.
	flattened := extras.flatten()
	vars := config.TemplateVars{
		ObjectID: mc.Object.ID,
	}
	if mc.Source != nil {
		vars.SourceID = mc.Source.ID
		vars.SourceURL = mc.Source.URL
		vars.SourceTitle = mc.Source.Title
	}
	if mc.Job != nil {
		vars.JobID = mc.Job.ID
	}

	if extras.additional == nil {
		extras.additional = map[string]string{}
	}
	for key, value := range mc.SourceConfig.DefaultExtras {
		if _, mapped := flattened[key]; mapped && !mc.SourceConfig.OverrideExtras {
			continue
		}
		m.logger.Debugw("Processing default extra", "key", key)
		extras.additional[key] = vars.Substitute(value)
	}
}
