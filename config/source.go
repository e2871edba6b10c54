package config

import (
	"encoding/json"
	"strings"

	"github.com/spatialworks/geocat/errors"
)

// SourceConfig is the per-source configuration blob, stored as JSON on
// the harvest source record.
type SourceConfig struct {
	// ValidatorProfiles overrides the instance-wide profile list.
	ValidatorProfiles []string `json:"validator_profiles,omitempty"`

	// DefaultTags are appended to every record mapped from this source.
	DefaultTags []string `json:"default_tags,omitempty"`

	// DefaultExtras are merged into every record's extras. String
	// values may reference {harvest_source_id}, {harvest_source_url},
	// {harvest_source_title}, {harvest_job_id} and {harvest_object_id}.
	DefaultExtras map[string]string `json:"default_extras,omitempty"`

	// OverrideExtras lets DefaultExtras replace extras already mapped
	// from the document.
	OverrideExtras bool `json:"override_extras,omitempty"`

	// ContinueOnValidationErrors overrides the instance-wide setting.
	ContinueOnValidationErrors bool `json:"continue_on_validation_errors,omitempty"`

	// ReindexUnchanged overrides the instance-wide setting when set.
	ReindexUnchanged *bool `json:"reindex_unchanged,omitempty"`
}

// ParseSourceConfig decodes a source configuration JSON blob. An empty
// blob yields an empty config.
func ParseSourceConfig(raw string) (SourceConfig, error) {
	var sc SourceConfig
	if strings.TrimSpace(raw) == "" {
		return sc, nil
	}
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		return SourceConfig{}, errors.Wrap(err, "invalid source config")
	}
	return sc, nil
}

// ValidateSourceConfig checks a source configuration blob before it is
// saved: it must decode, and any validator profiles it names must
// exist. knownProfiles is the set of registered profile names.
func ValidateSourceConfig(raw string, knownProfiles []string) error {
	sc, err := ParseSourceConfig(raw)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(knownProfiles))
	for _, p := range knownProfiles {
		known[p] = true
	}
	var unknown []string
	for _, p := range sc.ValidatorProfiles {
		if !known[p] {
			unknown = append(unknown, p)
		}
	}
	if len(unknown) > 0 {
		return errors.Newf("unknown validation profile(s): %s", strings.Join(unknown, ","))
	}

	return nil
}

// TemplateVars are the identities substituted into default-extra
// values.
type TemplateVars struct {
	SourceID    string
	SourceURL   string
	SourceTitle string
	JobID       string
	ObjectID    string
}

// Substitute expands the recognized {placeholder} references in a
// default-extra value. Unknown placeholders are left untouched.
func (tv TemplateVars) Substitute(value string) string {
	r := strings.NewReplacer(
		"{harvest_source_id}", tv.SourceID,
		"{harvest_source_url}", strings.TrimRight(tv.SourceURL, "/"),
		"{harvest_source_title}", tv.SourceTitle,
		"{harvest_job_id}", tv.JobID,
		"{harvest_object_id}", tv.ObjectID,
	)
	return r.Replace(value)
}
