package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDocument = `<gmd:MD_Metadata xmlns:gmd="http://www.isotc211.org/2005/gmd"
    xmlns:gco="http://www.isotc211.org/2005/gco">
  <gmd:fileIdentifier><gco:CharacterString>abc</gco:CharacterString></gmd:fileIdentifier>
  <gmd:identificationInfo>
    <gmd:MD_DataIdentification>
      <gmd:citation><gmd:CI_Citation>
        <gmd:title><gco:CharacterString>A Title</gco:CharacterString></gmd:title>
      </gmd:CI_Citation></gmd:citation>
      <gmd:abstract><gco:CharacterString>An abstract.</gco:CharacterString></gmd:abstract>
    </gmd:MD_DataIdentification>
  </gmd:identificationInfo>
</gmd:MD_Metadata>`

func TestNewValidatorsUnknownProfile(t *testing.T) {
	_, err := NewValidators([]string{"iso19139", "no-such-profile"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-profile")
}

func TestKnownProfilesIncludesBuiltin(t *testing.T) {
	assert.Contains(t, KnownProfiles(), "iso19139")
}

func TestIsValidPasses(t *testing.T) {
	v, err := NewValidators([]string{"iso19139"})
	require.NoError(t, err)

	valid, _, findings := v.IsValid([]byte(validDocument))
	assert.True(t, valid)
	assert.Empty(t, findings)
}

func TestIsValidMissingElements(t *testing.T) {
	doc := `<gmd:MD_Metadata xmlns:gmd="http://www.isotc211.org/2005/gmd">
	  <gmd:language/>
	</gmd:MD_Metadata>`

	v, err := NewValidators([]string{"iso19139"})
	require.NoError(t, err)

	valid, profile, findings := v.IsValid([]byte(doc))
	assert.False(t, valid)
	assert.Equal(t, "ISO 19139 structural check", profile)

	var messages []string
	for _, f := range findings {
		messages = append(messages, f.Message)
	}
	assert.Contains(t, messages, `missing required element "fileIdentifier"`)
	assert.Contains(t, messages, `missing required element "abstract"`)
}

func TestIsValidWrongRoot(t *testing.T) {
	v, err := NewValidators([]string{"iso19139"})
	require.NoError(t, err)

	valid, _, findings := v.IsValid([]byte(`<metadata><idinfo/></metadata>`))
	assert.False(t, valid)
	require.NotEmpty(t, findings)
	assert.Contains(t, findings[0].Message, "unexpected root element")
	require.NotNil(t, findings[0].Line)
	assert.Equal(t, 1, *findings[0].Line)
}

func TestIsValidMalformedXML(t *testing.T) {
	v, err := NewValidators([]string{"iso19139"})
	require.NoError(t, err)

	valid, profile, findings := v.IsValid([]byte("<gmd:MD_Metadata>\n<unclosed>"))
	assert.False(t, valid)
	assert.Equal(t, "Well-formed XML", profile)
	require.Len(t, findings, 1)
	require.NotNil(t, findings[0].Line)
}
