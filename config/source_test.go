package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceConfig(t *testing.T) {
	sc, err := ParseSourceConfig(`{
		"validator_profiles": ["iso19139"],
		"default_tags": ["geo", "harvested"],
		"default_extras": {"origin": "{harvest_source_url}/dataset/{harvest_object_id}"},
		"override_extras": true,
		"continue_on_validation_errors": true
	}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"iso19139"}, sc.ValidatorProfiles)
	assert.Equal(t, []string{"geo", "harvested"}, sc.DefaultTags)
	assert.True(t, sc.OverrideExtras)
	assert.True(t, sc.ContinueOnValidationErrors)
	assert.Nil(t, sc.ReindexUnchanged)
}

func TestParseSourceConfigEmpty(t *testing.T) {
	sc, err := ParseSourceConfig("   ")
	require.NoError(t, err)
	assert.Empty(t, sc.DefaultTags)
}

func TestParseSourceConfigInvalidJSON(t *testing.T) {
	_, err := ParseSourceConfig("{not json")
	assert.Error(t, err)
}

func TestValidateSourceConfigUnknownProfile(t *testing.T) {
	err := ValidateSourceConfig(`{"validator_profiles": ["iso19139", "bogus"]}`, []string{"iso19139"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")

	assert.NoError(t, ValidateSourceConfig(`{"validator_profiles": ["iso19139"]}`, []string{"iso19139"}))
	assert.NoError(t, ValidateSourceConfig("", nil))
}

func TestTemplateVarsSubstitute(t *testing.T) {
	vars := TemplateVars{
		SourceID:    "src-1",
		SourceURL:   "https://example.org/csw/",
		SourceTitle: "Production CSW",
		JobID:       "job-1",
		ObjectID:    "obj-1",
	}

	got := vars.Substitute("{harvest_source_url}/record/{harvest_object_id} via {harvest_source_title}")
	assert.Equal(t, "https://example.org/csw/record/obj-1 via Production CSW", got)

	// Unknown placeholders survive untouched
	assert.Equal(t, "{unknown}", vars.Substitute("{unknown}"))
}
