package harvest

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed licenses.yaml
var licensesYAML []byte

// License is one entry of the known license registry.
type License struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

var licenseRegistry []License

func init() {
	if err := yaml.Unmarshal(licensesYAML, &licenseRegistry); err != nil {
		panic("harvest: bad embedded license registry: " + err.Error())
	}
}

// Licenses returns the registry in scan order.
func Licenses() []License {
	return licenseRegistry
}

// SelectLicense scans the registry in fixed order and selects the
// first license whose title or URL appears as a substring of the
// use/access constraint text or of the first creative-commons hint.
// When nothing matches, the returned id is "other" with an empty URL.
func SelectLicense(useConstraints, accessConstraints, creativeCommons []string) (id, url string) {
	use := strings.Join(useConstraints, "")
	access := strings.Join(accessConstraints, "")
	commons := ""
	if len(creativeCommons) > 0 {
		commons = creativeCommons[0]
	}

	for _, l := range licenseRegistry {
		needles := []string{l.Title}
		if l.URL != "" {
			needles = append(needles, l.URL)
		}
		for _, needle := range needles {
			if needle == "" {
				continue
			}
			if (use != "" && strings.Contains(use, needle)) ||
				(access != "" && strings.Contains(access, needle)) ||
				(commons != "" && strings.Contains(commons, needle)) {
				return l.ID, l.URL
			}
		}
	}
	return "other", ""
}

// ExtractFirstLicenseURL returns the first constraint entry that parses
// as an absolute http(s) URL, for the licence_url extra.
func ExtractFirstLicenseURL(constraints []string) string {
	for _, c := range constraints {
		c = strings.TrimSpace(c)
		if strings.HasPrefix(c, "http://") || strings.HasPrefix(c, "https://") {
			return c
		}
	}
	return ""
}
