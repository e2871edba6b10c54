package harvest

import (
	"mime"
	"path"
	"strings"
)

// serviceFormats maps a format label to URL fragments that identify
// popular geospatial service endpoints. Checked in order.
var serviceFormats = []struct {
	format string
	parts  []string
}{
	// OGC
	{"wms", []string{"service=wms", "geoserver/wms", "mapserver/wmsserver", "com.esri.wms.esrimap", "service/wms"}},
	{"wfs", []string{"service=wfs", "geoserver/wfs", "mapserver/wfsserver", "com.esri.wfs.esrimap"}},
	{"wcs", []string{"service=wcs", "geoserver/wcs", "imageserver/wcsserver", "mapserver/wcsserver"}},
	{"sos", []string{"service=sos"}},
	{"csw", []string{"service=csw"}},
	// ESRI
	{"kml", []string{"mapserver/generatekml"}},
	{"arcims", []string{"com.esri.esrimap.esrimap"}},
	{"arcgis_rest", []string{"arcgis/rest/services"}},
}

// fileFormats maps a format label to URL suffixes.
var fileFormats = []struct {
	format     string
	extensions []string
}{
	{"kml", []string{"kml"}},
	{"kmz", []string{"kmz"}},
	{"gml", []string{"gml"}},
	{"csv", []string{"csv"}},
	{"xls", []string{"xls", "xlsx"}},
}

// GuessResourceFormat guesses the best format for a resource from its
// URL alone, looking for common patterns in geospatial service
// endpoints and file extensions. When useMimetypes is set the MIME
// tables are consulted as a last resort. Returns empty string when
// nothing matches.
func GuessResourceFormat(url string, useMimetypes bool) string {
	url = strings.ToLower(strings.TrimSpace(url))

	for _, svc := range serviceFormats {
		for _, part := range svc.parts {
			if strings.Contains(url, part) {
				return svc.format
			}
		}
	}

	for _, ft := range fileFormats {
		for _, ext := range ft.extensions {
			if strings.HasSuffix(url, ext) {
				return ft.format
			}
		}
	}

	if useMimetypes {
		if mt := mime.TypeByExtension(path.Ext(url)); mt != "" {
			// Strip any charset parameter
			if i := strings.Index(mt, ";"); i >= 0 {
				mt = mt[:i]
			}
			return strings.TrimSpace(mt)
		}
	}

	return ""
}

// FormatFilter decides whether a resource's declared format is in the
// accepted set.
type FormatFilter struct {
	accepted []string // upper-cased tokens
}

// NewFormatFilter builds a filter from the configured accepted-format
// list.
func NewFormatFilter(accepted []string) *FormatFilter {
	tokens := make([]string, 0, len(accepted))
	seen := map[string]bool{}
	for _, a := range accepted {
		token := strings.ToUpper(strings.TrimSpace(a))
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return &FormatFilter{accepted: tokens}
}

// Accept tests a declared format string: the segment after the last
// '/' is upper-cased and substring-matched against the accepted
// tokens. On a match the original (pre-upper-case) segment is returned
// as the format to keep; otherwise ok is false and the resource should
// be dropped.
func (f *FormatFilter) Accept(format string) (label string, ok bool) {
	if format == "" {
		return "", false
	}
	segment := format
	if i := strings.LastIndex(format, "/"); i >= 0 {
		segment = format[i+1:]
	}
	upper := strings.ToUpper(segment)
	for _, token := range f.accepted {
		if strings.Contains(upper, token) {
			return segment, true
		}
	}
	return "", false
}
