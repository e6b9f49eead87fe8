// Package reviews keeps a tag's external rating in sync with the provider's
// review page: it canonicalizes the review URL, renders the page, extracts
// the rating and review count and records the outcome on the tag.
package reviews

import (
	"net/url"
	"regexp"
)

var orgPathRe = regexp.MustCompile(`/org/[^/]+/(\d+)`)

// OrgID extracts the provider organization id from a review URL: the oid
// query parameter first, then a /org/<slug>/<digits> path.
func OrgID(reviewURL string) (string, bool) {
	u, err := url.Parse(reviewURL)
	if err != nil {
		return "", false
	}
	if oid := u.Query().Get("oid"); oid != "" {
		return oid, true
	}
	if m := orgPathRe.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	return "", false
}

// Normalize rewrites a review URL carrying an organization id into the
// canonical https://<host>/maps/?oid=<id> form. Anything else, including
// unparseable input, is returned unchanged.
func Normalize(reviewURL, host string) string {
	oid, ok := OrgID(reviewURL)
	if !ok {
		return reviewURL
	}
	canonical := url.URL{
		Scheme:   "https",
		Host:     host,
		Path:     "/maps/",
		RawQuery: url.Values{"oid": {oid}}.Encode(),
	}
	return canonical.String()
}
