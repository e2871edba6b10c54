package harvest

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatialworks/geocat/catalog"
	"github.com/spatialworks/geocat/config"
	"github.com/spatialworks/geocat/errors"
	geocattest "github.com/spatialworks/geocat/internal/testing"
	"github.com/spatialworks/geocat/iso"
)

// stubNames slugs titles without consulting a catalog.
type stubNames struct {
	fail bool
}

func (s stubNames) GenerateName(_ context.Context, title string) (string, error) {
	if s.fail {
		return "", errors.New("name generation unavailable")
	}
	name := catalog.MungeTitleToName(title)
	if name == "" {
		return "", errors.New("empty name")
	}
	return name, nil
}

// recordingErrors captures structured findings in memory.
type recordingErrors struct {
	messages []string
}

func (r *recordingErrors) SaveObjectError(_ context.Context, _, message, _ string, _ *int) error {
	r.messages = append(r.messages, message)
	return nil
}

func newTestMapper(t *testing.T) *Mapper {
	t.Helper()
	db := geocattest.CreateTestDB(t)
	store := catalog.NewSQLStore(db, nil)
	orgs := NewOrgResolver(store, NewOrgCache(), nil)
	return NewMapper(orgs, nil, nil)
}

func baseValues() *iso.Values {
	return &iso.Values{
		GUID:         "guid-1",
		Title:        "Coastal Bathymetry Survey",
		Abstract:     "High resolution bathymetry.",
		Tags:         []string{"bathymetry - depth", "coastal"},
		MetadataDate: "2024-03-15",
	}
}

func baseContext(values *iso.Values) (*MapContext, *recordingErrors) {
	rec := &recordingErrors{}
	return &MapContext{
		Object: &Object{ID: "obj-1", GUID: values.GUID},
		Source: &Source{ID: "src-1", URL: "https://example.org/csw/", Title: "Production CSW"},
		Job:    &Job{ID: "job-1", SourceID: "src-1"},
		Names:  stubNames{},
		Errors: rec,
	}, rec
}

func TestMapBasics(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	values.TopicCategories = []string{"oceans"}
	values.AccessConstraints = []string{"Creative Commons Attribution"}
	mc, _ := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)

	assert.Equal(t, "Coastal Bathymetry Survey", rec.Title)
	assert.Equal(t, "High resolution bathymetry.", rec.Notes)
	assert.Equal(t, "coastal-bathymetry-survey", rec.Name)
	assert.Equal(t, []string{"bathymetry", "depth", "coastal", "oceans"}, rec.Tags)
	assert.Equal(t, "cc-by", rec.LicenseID)
	assert.Equal(t, "guid-1", rec.Extras["guid"])
	assert.Equal(t, "true", rec.Extras["spatial_harvester"])
	assert.Equal(t, "cc-by", rec.Extras["licence"])
	assert.Equal(t, "2024-03-15", rec.Extras["metadata-date"])
}

func TestMapTagTruncation(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	long := "this keyword is quite a bit longer than the fifty character tag limit"
	values.Tags = []string{long}
	mc, _ := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	require.Len(t, rec.Tags, 1)
	assert.Equal(t, 50, utf8.RuneCountInString(rec.Tags[0]))
}

func TestMapTagTruncationCountsRunes(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	long := strings.Repeat("é", 60)
	values.Tags = []string{long}
	mc, _ := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	require.Len(t, rec.Tags, 1)
	assert.True(t, utf8.ValidString(rec.Tags[0]))
	assert.Equal(t, strings.Repeat("é", 50), rec.Tags[0])
}

func TestMapKeepsAccentedKeywords(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	values.Tags = []string{"océanographie"}
	mc, _ := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	assert.Contains(t, rec.Tags, "océanographie")
}

func TestMapNotesFallback(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	values.Abstract = ""
	values.Purpose = "Navigation safety. "
	values.Lineage = "Multibeam survey."
	mc, _ := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	assert.Equal(t, "Navigation safety. Multibeam survey.", rec.Notes)
}

func TestMapNameReuseWhenTitleUnchanged(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	mc, _ := baseContext(values)
	mc.ExistingRecord = &catalog.Record{
		Name:  "historical-name",
		Title: values.Title,
	}

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	assert.Equal(t, "historical-name", rec.Name)

	// Title change forces a fresh name
	mc.ExistingRecord.Title = "An Older Title"
	rec, err = m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	assert.Equal(t, "coastal-bathymetry-survey", rec.Name)
}

func TestMapNameFallsBackToGUID(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	values.Title = "!!!"
	mc, _ := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	assert.Equal(t, "guid-1", rec.Name)
}

func TestMapNameGenerationFailureIsFatal(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	mc, _ := baseContext(values)
	mc.Names = stubNames{fail: true}

	_, err := m.Map(context.Background(), values, mc)
	assert.Error(t, err)
}

func TestMapPointExtent(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	values.BBoxes = []iso.BoundingBox{{West: "150.0", East: "150.0", South: "-39.2", North: "-33.0"}}
	mc, recorded := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	assert.Contains(t, rec.Extras["spatial"], `"Point"`)
	assert.Contains(t, recorded.messages, "Point extent defined instead of polygon")
}

func TestMapPolygonExtent(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	values.BBoxes = []iso.BoundingBox{{West: "140.5", East: "150.0", South: "-39.2", North: "-33.0"}}
	mc, recorded := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	assert.Contains(t, rec.Extras["spatial"], `"Polygon"`)
	assert.Equal(t, rec.Extras["spatial"], rec.Extras["spatial_coverage"])
	assert.Equal(t, "150.0", rec.Extras["bbox-east-long"])
	assert.Empty(t, recorded.messages)
}

func TestMapBadBBoxRecordsAndSkips(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	values.BBoxes = []iso.BoundingBox{{West: "not-a-number", East: "150.0", South: "-39.2", North: "-33.0"}}
	mc, recorded := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	assert.NotContains(t, rec.Extras, "spatial")
	require.Len(t, recorded.messages, 1)
	assert.Contains(t, recorded.messages[0], "Error parsing bounding box value")
}

func TestMapResponsiblePartiesPrefersCustodian(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	values.ResponsibleOrganisations = []iso.ResponsibleParty{
		{OrganisationName: "Data Distributors Ltd", Role: "distributor"},
		{OrganisationName: "Marine Institute", Role: "custodian"},
		{OrganisationName: "Marine Institute", Role: "pointOfContact"},
	}
	mc, _ := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	assert.Equal(t, "marine-institute", rec.OwnerOrg)
	assert.Contains(t, rec.Extras["responsible-party"], "Marine Institute")
	assert.Contains(t, rec.Extras["responsible-party"], "custodian")
}

func TestMapResources(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	values.DateUpdated = "2024-02-20"
	values.ResourceLocators = []iso.ResourceLocator{
		{URL: "https://example.org/data.csv", Name: "CSV download", Description: "Soundings"},
		{URL: "https://example.org/data.csv", Name: "Duplicate"},
		{URL: "ftp://example.org/data.zip", Name: "FTP mirror"},
		{URL: "https://example.org/service", Description: "Access via WMS applications"},
		{URL: "https://example.org/nameless"},
	}
	mc, _ := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	require.Len(t, rec.Resources, 3)

	csv := rec.Resources[0]
	require.NotNil(t, csv.Format)
	assert.Equal(t, "csv", *csv.Format)
	assert.Equal(t, "CSV download", csv.Name)
	assert.Equal(t, "Soundings", csv.Description)
	assert.Equal(t, "2024-02-20", csv.LastModified)

	wms := rec.Resources[1]
	require.NotNil(t, wms.Format)
	assert.Equal(t, "wms", *wms.Format)
	assert.Equal(t, "Access via WMS applications", wms.Name)

	nameless := rec.Resources[2]
	assert.Equal(t, "https://example.org/nameless", nameless.Name)
}

func TestMapResourceFormatLaterRuleWins(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	values.ResourceLocators = []iso.ResourceLocator{
		{URL: "https://example.org/download/kml-archive", Description: "Zipped shapefile export (shp)"},
	}
	mc, _ := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	require.Len(t, rec.Resources, 1)
	require.NotNil(t, rec.Resources[0].Format)
	assert.Equal(t, "shp", *rec.Resources[0].Format)
}

func TestMapResourceFnameExtraction(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	values.ResourceLocators = []iso.ResourceLocator{
		{URL: "https://example.org/get?fname=soundings.csv&id=9"},
	}
	mc, _ := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	require.Len(t, rec.Resources, 1)
	assert.Equal(t, "soundings.csv", rec.Resources[0].Name)
	require.NotNil(t, rec.Resources[0].Format)
	assert.Equal(t, "csv", *rec.Resources[0].Format)
}

func TestMapExcludedResourceURLs(t *testing.T) {
	m := newTestMapper(t)
	m.ExcludedURLs = []string{"https://example.org/skip-me"}
	m.ExcludedURLPrefixes = []string{"https://legacy.example.org/"}

	values := baseValues()
	values.ResourceLocators = []iso.ResourceLocator{
		{URL: "https://example.org/skip-me"},
		{URL: "https://legacy.example.org/old/data.csv"},
		{URL: "https://example.org/keep.csv"},
	}
	mc, _ := baseContext(values)

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	require.Len(t, rec.Resources, 1)
	assert.Equal(t, "https://example.org/keep.csv", rec.Resources[0].URL)
}

func TestMapDefaultTagsAndExtras(t *testing.T) {
	m := newTestMapper(t)
	values := baseValues()
	mc, _ := baseContext(values)
	mc.SourceConfig = config.SourceConfig{
		DefaultTags: []string{"harvested"},
		DefaultExtras: map[string]string{
			"origin": "{harvest_source_url}/dataset/{harvest_object_id}",
			"guid":   "should-not-replace",
		},
	}

	rec, err := m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	assert.Contains(t, rec.Tags, "harvested")
	assert.Equal(t, "https://example.org/csw/dataset/obj-1", rec.Extras["origin"])
	// Mapped extras win unless override_extras is set
	assert.Equal(t, "guid-1", rec.Extras["guid"])

	mc.SourceConfig.OverrideExtras = true
	rec, err = m.Map(context.Background(), values, mc)
	require.NoError(t, err)
	assert.Equal(t, "should-not-replace", rec.Extras["guid"])
}
