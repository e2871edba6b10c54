// Package validation runs metadata documents through a configurable
// set of named validator profiles before import.
package validation

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spatialworks/geocat/errors"
)

// Error is one validation finding. Line is nil when the finding has no
// useful document position.
type Error struct {
	Message string
	Line    *int
}

// Profile validates a parsed metadata document against one named set
// of rules.
type Profile interface {
	// Name is the identifier used in configuration.
	Name() string
	// Title is a human-readable label used in error reports.
	Title() string
	// Check returns the findings for the document. A well-formedness
	// failure is reported as an error return, not a finding.
	Check(content []byte) ([]Error, error)
}

var registry = map[string]Profile{}

// Register adds a profile to the global registry. It panics on a
// duplicate name; profiles register from init.
func Register(p Profile) {
	if _, ok := registry[p.Name()]; ok {
		panic(fmt.Sprintf("validation: duplicate profile %q", p.Name()))
	}
	registry[p.Name()] = p
}

// KnownProfiles returns the registered profile names, sorted.
func KnownProfiles() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validators runs an ordered list of profiles against documents.
type Validators struct {
	profiles []Profile
}

// NewValidators resolves profile names against the registry. An
// unknown name is an error rather than a silent skip.
func NewValidators(names []string) (*Validators, error) {
	v := &Validators{}
	for _, name := range names {
		p, ok := registry[name]
		if !ok {
			return nil, errors.Newf("unknown validator profile %q (known: %s)",
				name, strings.Join(KnownProfiles(), ", "))
		}
		v.profiles = append(v.profiles, p)
	}
	return v, nil
}

// Profiles returns the names of the resolved profiles in order.
func (v *Validators) Profiles() []string {
	names := make([]string, len(v.profiles))
	for i, p := range v.profiles {
		names[i] = p.Name()
	}
	return names
}

// IsValid runs every profile against the document. It returns whether
// all profiles passed, the title of the first failing profile, and the
// accumulated findings. A document that is not well-formed XML fails
// immediately with the decoder error as the single finding.
func (v *Validators) IsValid(content []byte) (bool, string, []Error) {
	if err := checkWellFormed(content); err != nil {
		line := xmlErrorLine(err)
		return false, "Well-formed XML", []Error{{Message: err.Error(), Line: line}}
	}

	var all []Error
	failedTitle := ""
	for _, p := range v.profiles {
		findings, err := p.Check(content)
		if err != nil {
			findings = []Error{{Message: err.Error()}}
		}
		if len(findings) > 0 {
			if failedTitle == "" {
				failedTitle = p.Title()
			}
			all = append(all, findings...)
		}
	}
	return len(all) == 0, failedTitle, all
}

func checkWellFormed(content []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(content))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func xmlErrorLine(err error) *int {
	var syntax *xml.SyntaxError
	if errors.As(err, &syntax) {
		line := syntax.Line
		return &line
	}
	return nil
}
