package processor

import (
	"regexp"
	"strings"
)

// Dialect is the subtitle format a text is parsed as.
type Dialect int

const (
	DialectTimedCaption Dialect = iota
	DialectStyledScript
)

func (d Dialect) String() string {
	switch d {
	case DialectStyledScript:
		return "styled-script"
	default:
		return "timed-caption"
	}
}

var styledScriptMarkers = []string{"[Script Info]", "[V4+ Styles]"}

// DetectDialect reports DialectStyledScript when either section marker is present.
func DetectDialect(text string) Dialect {
	for _, m := range styledScriptMarkers {
		if strings.Contains(text, m) {
			return DialectStyledScript
		}
	}
	return DialectTimedCaption
}

var (
	sectionHeaderRe = regexp.MustCompile(`(?m)^[ \t]*\[[^\]\n]*\][ \t]*(?:\n|$)`)
	overrideTagRe   = regexp.MustCompile(`\{\\[^}]*\}`)
	braceRe         = regexp.MustCompile(`\{[^}]*\}`)
	nonASCIIRe      = regexp.MustCompile(`[^\x00-\x7F]+`)
	dialogueRe      = regexp.MustCompile(`(?m)^Dialogue: \d+,\d{1,2}:\d{2}:\d{2}\.\d{2},\d{1,2}:\d{2}:\d{2}\.\d{2},[^,\n]*,[^,\n]*,[^,\n]*,[^,\n]*,[^,\n]*,[^,\n]*,(.*)`)

	markupTagRe   = regexp.MustCompile(`<[^>]+>`)
	timingRe      = regexp.MustCompile(`\d{2}:\d{2}:\d{2},\d{3} --> \d{2}:\d{2}:\d{2},\d{3}`)
	sequenceNumRe = regexp.MustCompile(`(?m)^[ \t]*\d+[ \t]*$`)
)

// strategy turns dialect-specific text into candidate transcript lines.
type strategy func(text string) []string

var strategies = map[Dialect]strategy{
	DialectTimedCaption: timedCaptionLines,
	DialectStyledScript: styledScriptLines,
}

func styledScriptLines(text string) []string {
	text = sectionHeaderRe.ReplaceAllString(text, "")
	text = overrideTagRe.ReplaceAllString(text, "")
	text = braceRe.ReplaceAllString(text, "")
	text = nonASCIIRe.ReplaceAllString(text, "")

	matches := dialogueRe.FindAllStringSubmatch(text, -1)
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, m[1])
	}
	return lines
}

func timedCaptionLines(text string) []string {
	text = sequenceNumRe.ReplaceAllString(text, "")
	text = timingRe.ReplaceAllString(text, "")
	text = markupTagRe.ReplaceAllString(text, "")
	return strings.Split(text, "\n")
}
