package harvest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectLicenseByTitle(t *testing.T) {
	id, url := SelectLicense(nil,
		[]string{"Data released under Creative Commons Attribution 4.0"}, nil)
	assert.Equal(t, "cc-by", id)
	assert.Equal(t, "http://www.opendefinition.org/licenses/cc-by", url)
}

func TestSelectLicenseByURL(t *testing.T) {
	id, url := SelectLicense(
		[]string{"See http://reference.data.gov.uk/id/open-government-licence for terms"}, nil, nil)
	assert.Equal(t, "uk-ogl", id)
	assert.Equal(t, "http://reference.data.gov.uk/id/open-government-licence", url)
}

func TestSelectLicenseCreativeCommonsHint(t *testing.T) {
	id, _ := SelectLicense(nil, nil,
		[]string{"Licensed as Creative Commons CCZero for reuse"})
	assert.Equal(t, "cc-zero", id)
}

func TestSelectLicenseNoMatch(t *testing.T) {
	id, url := SelectLicense([]string{"All rights reserved by the publisher"}, nil, nil)
	assert.Equal(t, "other", id)
	assert.Equal(t, "", url)
}

func TestSelectLicenseFixedScanOrder(t *testing.T) {
	// Text matching both cc-by and cc-by-sa selects cc-by, the earlier
	// registry entry.
	id, _ := SelectLicense(
		[]string{"Creative Commons Attribution Share-Alike and Creative Commons Attribution"}, nil, nil)
	assert.Equal(t, "cc-by", id)
}

func TestExtractFirstLicenseURL(t *testing.T) {
	url := ExtractFirstLicenseURL([]string{
		"Attribution required",
		"https://example.org/licence",
		"http://example.org/second",
	})
	assert.Equal(t, "https://example.org/licence", url)

	assert.Equal(t, "", ExtractFirstLicenseURL([]string{"no url here"}))
	assert.Equal(t, "", ExtractFirstLicenseURL(nil))
}
