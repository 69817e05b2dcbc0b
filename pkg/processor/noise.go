package processor

import (
	"fmt"
	"regexp"
)

// NoiseRule is one advertising or credit phrase. A match removes the phrase
// through to the end of its line, trailing newline included.
type NoiseRule struct {
	Name    string
	Pattern string
}

// DefaultNoiseRules run in this order.
var DefaultNoiseRules = []NoiseRule{
	{"opensubtitles-api-deprecated", `api\.OpenSubtitles\.org is deprecated`},
	{"opensubtitles-rest-api", `implement REST API from OpenSubtitles\.com`},
	{"vod-promo", `ENJOY ALL VOD IN HIGH QUALITY`},
	{"live-tv-promo", `GET LIVE TV,MOVIES,SHOWS`},
	{"vip-promo", `Support us and become VIP`},
	{"remove-ads", `to remove all ads from`},
	{"open-subtitles-video", `Watch any video online with Open-SUBTITLES`},
	{"osdb-extension", `Free Browser extension: osdb\.link/ext`},
	{"started-by-credit", `~ subtitles started by .*? ~`},
	{"sync-credit", `~ edits & sync by .*? ~`},
	{"advertise-here", `Advertise your product or brand here`},
	{"contact-opensubtitles", `contact www\.OpenSubtitles\.org`},
	{"kvod-promo", `ENJOY ALL VOD IN HIGH QUALITY @ KVOD\.TV`},
	{"member", `member`},
	{"opensubtitles-org", `www\.OpenSubtitles\.org`},
	{"joinnow-code", `Use the free code JOINNOW at`},
	{"playships", `www\.playships\.eu`},
	{"opensubtitles-com-banner", `-== \[ www\.OpenSubtitles\.com \] ==-`},
	{"osdb-rate", `please rate this subtitle at www\.osdb\.link/\w+`},
	{"help-other-users", `help other users to choose the best subtitles`},
}

type compiledRule struct {
	name string
	re   *regexp.Regexp
}

func compileRules(rules []NoiseRule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(`(?i)` + r.Pattern + `.*\n?`)
		if err != nil {
			return nil, fmt.Errorf("invalid noise pattern %q: %w", r.Name, err)
		}
		out = append(out, compiledRule{name: r.Name, re: re})
	}
	return out, nil
}

func stripNoise(text string, rules []compiledRule) string {
	for _, r := range rules {
		text = r.re.ReplaceAllLiteralString(text, "")
	}
	return text
}
