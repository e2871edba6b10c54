package iso

import "strings"

// Metadata standards recognized by GuessStandard.
const (
	StandardISO     = "iso"
	StandardFGDC    = "fgdc"
	StandardUnknown = "unknown"
)

// GuessStandard inspects raw document content and reports which
// metadata standard family it appears to belong to. The check is a
// cheap substring scan so it can run before any real parsing.
func GuessStandard(content []byte) string {
	lowered := strings.ToLower(string(content))
	if strings.Contains(lowered, "</gmd:md_metadata>") {
		return StandardISO
	}
	if strings.Contains(lowered, "</gmi:mi_metadata>") {
		return StandardISO
	}
	if strings.Contains(lowered, "</md_metadata>") {
		return StandardISO
	}
	if strings.Contains(lowered, "</metadata>") {
		return StandardFGDC
	}
	return StandardUnknown
}
