package search

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// labelStripRules run in order against the raw subtitle filename.
var labelStripRules = []*regexp.Regexp{
	regexp.MustCompile(`\s*\(\d{4}\).*$`),
	regexp.MustCompile(`[._ ](?:19|20)\d{2}(?:\D.*)?$`),
	regexp.MustCompile(`(?i)[._ ]s\d{2}(?:[._ ]?e\d{2})?`),
	regexp.MustCompile(`(?i)\.eng.*$`),
	regexp.MustCompile(`\.\d{3}\b`),
	regexp.MustCompile(`(?i)\.(?:srt|ass|ssa|sub|vtt|txt|zip)$`),
}

var (
	separatorRe = regexp.MustCompile(`[._]+`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// MovieLabel derives a display title from a subtitle filename by dropping
// year, season, language and extension suffixes and title-casing the rest.
func MovieLabel(filename string) string {
	name := strings.TrimSpace(filename)
	for _, re := range labelStripRules {
		name = re.ReplaceAllString(name, "")
	}
	name = separatorRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(spaceRe.ReplaceAllString(name, " "))
	if name == "" {
		return ""
	}
	return cases.Title(language.Und).String(name)
}
