package harvest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuessResourceFormat(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://example.org/data.csv", "csv"},
		{"https://example.org/download/data.KML", "kml"},
		{"https://example.org/geoserver/wms?layers=topo", "wms"},
		{"https://example.org/ows?SERVICE=WFS&request=GetFeature", "wfs"},
		{"https://example.org/arcgis/rest/services/Topo/MapServer", "arcgis_rest"},
		{"https://example.org/sheet.xlsx", "xls"},
		{"https://example.org/unknown", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, GuessResourceFormat(tc.url, false), "url %s", tc.url)
	}
}

func TestGuessResourceFormatMimeFallback(t *testing.T) {
	got := GuessResourceFormat("https://example.org/report.pdf", true)
	assert.Equal(t, "application/pdf", got)

	// Without mimetypes the same URL yields nothing
	assert.Equal(t, "", GuessResourceFormat("https://example.org/report.pdf", false))
}

func TestFormatFilterAccept(t *testing.T) {
	filter := NewFormatFilter([]string{"csv", "wms", "shp"})

	label, ok := filter.Accept("text/csv")
	assert.True(t, ok)
	assert.Equal(t, "csv", label)

	label, ok = filter.Accept("WMS")
	assert.True(t, ok)
	assert.Equal(t, "WMS", label)

	_, ok = filter.Accept("application/pdf")
	assert.False(t, ok)

	_, ok = filter.Accept("")
	assert.False(t, ok)
}
