package correlation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/tracelight/tracelight/internal/domain"
)

var (
	urlRe  = regexp.MustCompile(`https?://[^\s"']+`)
	pathRe = regexp.MustCompile(`/(?:api|checkout|webhook|auth)/[^\s"',)]*`)
)

// ExtractEndpoint recovers the endpoint an event refers to. Structured
// raw_data wins; free-text recovery is best-effort and known to miss
// endpoints phrased unusually.
func ExtractEndpoint(event *domain.Event) string {
	if event.RawData != nil {
		if ep, ok := event.RawData[domain.RawKeyEndpoint].(string); ok && ep != "" {
			return normalizeEndpoint(ep)
		}
	}

	if raw := urlRe.FindString(event.Message); raw != "" {
		if u, err := url.Parse(raw); err == nil && u.Path != "" && u.Path != "/" {
			return normalizeEndpoint(u.Path)
		}
	}

	if path := pathRe.FindString(event.Message); path != "" {
		return normalizeEndpoint(path)
	}

	return ""
}

func normalizeEndpoint(ep string) string {
	ep = strings.TrimSpace(ep)
	ep = strings.TrimRight(ep, "/.,:;?")
	return strings.ToLower(ep)
}
