// Package iso extracts a normalized field map from ISO-19139-family
// metadata documents. Only the fields the import pipeline consumes are
// extracted; the rest of the document is ignored.
package iso

// ReferenceDate is one dated event in the dataset citation.
type ReferenceDate struct {
	Type  string // creation, publication, revision, ...
	Value string
}

// ResponsibleParty is one responsible-organisation entry.
type ResponsibleParty struct {
	OrganisationName string
	Role             string
}

// BoundingBox is a geographic bounding box with the coordinate values
// kept as strings; parsing to floats (and the errors that go with it)
// is the mapper's business.
type BoundingBox struct {
	West  string
	East  string
	South string
	North string
}

// ResourceLocator is one distribution or identification online
// resource.
type ResourceLocator struct {
	URL         string
	Name        string
	Description string
	Protocol    string
	Function    string
}

// BrowseGraphic is a graphic-preview reference.
type BrowseGraphic struct {
	File        string
	Description string
	Type        string
}

// Values is the parsed field map of one metadata document.
type Values struct {
	GUID  string
	Title string

	Abstract string
	Purpose  string
	Lineage  string

	MetadataLanguage        string
	MetadataDate            string
	MetadataStandardName    string
	MetadataStandardVersion string
	DateStamp               string

	Tags            []string
	TopicCategories []string

	DatasetReferenceDates []ReferenceDate
	DateUpdated           string // first revision reference date

	ContactEmail           string
	FrequencyOfUpdate      string
	SpatialReferenceSystem string
	SpatialDataServiceType string
	ResourceType           []string
	Progress               []string
	CoupledResource        []string
	Source                 string

	UseConstraints    []string
	AccessConstraints []string
	CreativeCommons   []string

	ResponsibleOrganisations []ResponsibleParty
	BrowseGraphics           []BrowseGraphic

	BBoxes              []BoundingBox
	TemporalExtentBegin []string
	TemporalExtentEnd   []string

	ResourceLocators               []ResourceLocator
	ResourceLocatorIdentifications []ResourceLocator
}

// AllResourceLocators returns distribution locators followed by
// identification locators, the order the mapper walks them.
func (v *Values) AllResourceLocators() []ResourceLocator {
	out := make([]ResourceLocator, 0, len(v.ResourceLocators)+len(v.ResourceLocatorIdentifications))
	out = append(out, v.ResourceLocators...)
	out = append(out, v.ResourceLocatorIdentifications...)
	return out
}
