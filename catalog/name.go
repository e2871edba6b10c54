package catalog

import (
	"regexp"
	"strings"
)

// MaxNameLength bounds generated record names.
const MaxNameLength = 100

var (
	separatorRe  = regexp.MustCompile(`[ .:/,]`)
	disallowedRe = regexp.MustCompile(`[^a-zA-Z0-9-_]`)
	dashRunRe    = regexp.MustCompile(`-{2,}`)
)

// MungeTitleToName turns a free-text title into a URL-safe slug:
// separators become hyphens, disallowed characters are dropped, hyphen
// runs collapse, and the result is lower-cased and trimmed. The slug is
// capped one short of MaxNameLength so a disambiguating suffix still
// fits.
func MungeTitleToName(title string) string {
	name := separatorRe.ReplaceAllString(title, "-")
	name = disallowedRe.ReplaceAllString(name, "")
	name = strings.ToLower(name)
	name = dashRunRe.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if len(name) > MaxNameLength-1 {
		name = name[:MaxNameLength-1]
	}
	return name
}
