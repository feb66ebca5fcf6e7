package urlcheck

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// based on: https://stackoverflow.com/a/48769624, with no trailing period allowed
var urlRegex = regexp.MustCompile(`(?:(?:https?|ftp):\/\/)?[\w/\-?=%.]+\.[\w/\-&?=%.]*[\w/\-&?=%]+`)

// ExtractTextURLs finds URL-shaped substrings in free-form text, lowercased
// and de-duplicated, preserving first-seen order. Bare domains (no scheme)
// are matched too.
func ExtractTextURLs(raw string) []string {
	matches := urlRegex.FindAllString(raw, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		m = strings.ToLower(m)
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

var trackingParams = []string{
	"_ga",
	"fbclid",
	"gclid",
	"mc_eid",
	"msclkid",
	"utm_campaign",
	"utm_content",
	"utm_id",
	"utm_medium",
	"utm_source",
	"utm_term",
}

// NormalizeURL aggressively normalizes a URL for matching and verdict
// caching: fragments, duplicate slashes, a leading www, and common tracking
// params are all dropped. The result may not be directly functional as a URL.
func NormalizeURL(raw string) string {
	clean, err := purell.NormalizeURLString(raw, purell.FlagsUsuallySafeGreedy|purell.FlagRemoveFragment|purell.FlagRemoveDuplicateSlashes|purell.FlagRemoveWWW|purell.FlagSortQuery)
	if err != nil {
		return raw
	}

	u, err := url.Parse(clean)
	if err != nil {
		return clean
	}
	if u.RawQuery == "" {
		return clean
	}
	params := u.Query()
	for _, p := range trackingParams {
		params.Del(p)
	}
	u.RawQuery = params.Encode()
	return u.String()
}

// HostOf parses the host out of a matched URL string, tolerating a missing
// scheme. Returns "" when no host can be determined.
func HostOf(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimSuffix(host, ".")
}

// lastLabel returns the final dot-separated label of a host (its TLD), or ""
// for IP literals and empty hosts.
func lastLabel(host string) string {
	idx := strings.LastIndex(host, ".")
	if idx < 0 || idx == len(host)-1 {
		return ""
	}
	label := host[idx+1:]
	for _, r := range label {
		if r >= '0' && r <= '9' {
			return ""
		}
	}
	return label
}

// longestDigitRun returns the length of the longest run of consecutive
// decimal digits in s.
func longestDigitRun(s string) int {
	best, cur := 0, 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}
