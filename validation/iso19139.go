package validation

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

func init() {
	Register(&iso19139Profile{})
}

// iso19139Profile is a structural check of the ISO-19139 elements the
// import pipeline depends on. It is deliberately lighter than full
// schema validation: it verifies the root element, the file identifier
// and the presence of an identification block with a title and an
// abstract.
type iso19139Profile struct{}

func (p *iso19139Profile) Name() string  { return "iso19139" }
func (p *iso19139Profile) Title() string { return "ISO 19139 structural check" }

var iso19139Roots = map[string]bool{
	"MD_Metadata": true,
	"MI_Metadata": true,
}

func (p *iso19139Profile) Check(content []byte) ([]Error, error) {
	type mark struct {
		seen bool
		line int
	}
	found := map[string]*mark{
		"fileIdentifier":     {},
		"identificationInfo": {},
		"title":              {},
		"abstract":           {},
	}

	dec := xml.NewDecoder(bytes.NewReader(content))
	lines := newLineIndex(content)

	var findings []Error
	rootChecked := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !rootChecked {
			rootChecked = true
			if !iso19139Roots[start.Name.Local] {
				line := lines.at(dec.InputOffset())
				findings = append(findings, Error{
					Message: fmt.Sprintf("unexpected root element %q, expected MD_Metadata", start.Name.Local),
					Line:    &line,
				})
				return findings, nil
			}
		}
		if m, ok := found[start.Name.Local]; ok && !m.seen {
			m.seen = true
			m.line = lines.at(dec.InputOffset())
		}
	}

	if !rootChecked {
		findings = append(findings, Error{Message: "empty document"})
		return findings, nil
	}
	for _, name := range []string{"fileIdentifier", "identificationInfo", "title", "abstract"} {
		if !found[name].seen {
			findings = append(findings, Error{
				Message: fmt.Sprintf("missing required element %q", name),
			})
		}
	}
	return findings, nil
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex struct {
	starts []int64
}

func newLineIndex(content []byte) *lineIndex {
	idx := &lineIndex{starts: []int64{0}}
	for i, b := range content {
		if b == '\n' {
			idx.starts = append(idx.starts, int64(i)+1)
		}
	}
	return idx
}

func (idx *lineIndex) at(offset int64) int {
	line := 1
	for i, s := range idx.starts {
		if s > offset {
			break
		}
		line = i + 1
	}
	return line
}
