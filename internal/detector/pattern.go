package detector

import (
	"regexp"
	"strings"
)

// Pattern length cap keeps substring matching cheap and indexes usable.
const patternMaxLen = 50

var (
	uuidRe    = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	isoDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?)?`)
	digitsRe  = regexp.MustCompile(`\d+`)
	spacesRe  = regexp.MustCompile(`\s+`)
)

// NormalizePattern reduces an error message to a stable signature: UUIDs,
// ISO dates and digit runs are stripped so that two occurrences of the same
// fault produce the same pattern regardless of ids and timestamps.
func NormalizePattern(message string) string {
	p := uuidRe.ReplaceAllString(message, "")
	p = isoDateRe.ReplaceAllString(p, "")
	p = digitsRe.ReplaceAllString(p, "")
	p = spacesRe.ReplaceAllString(p, " ")
	p = strings.TrimSpace(p)

	if len(p) > patternMaxLen {
		p = p[:patternMaxLen]
	}
	return p
}
