// utils/validate.go
package utils

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

var (
	slugPattern   = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
	htmlTags      = regexp.MustCompile(`<[^>]*>`)
	jsProtocol    = regexp.MustCompile(`(?i)javascript:`)
	eventHandlers = regexp.MustCompile(`(?i)on\w+\s*=`)
	digitsOnly    = regexp.MustCompile(`^\d+$`)
)

// Video hosts accepted for run submissions. Subdomains of these are allowed.
var allowedVideoHosts = []string{
	"youtube.com", "m.youtube.com", "youtu.be",
	"twitch.tv", "m.twitch.tv", "player.twitch.tv",
	"bilibili.com", "nicovideo.jp",
}

// SanitizeText strips HTML tags, javascript: prefixes and inline event
// handlers, trims whitespace and truncates to maxLen runes.
func SanitizeText(s string, maxLen int) string {
	s = htmlTags.ReplaceAllString(s, "")
	s = jsProtocol.ReplaceAllString(s, "")
	s = eventHandlers.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return s
}

// SanitizeArray keeps at most maxItems entries, sanitizes each and drops
// anything that sanitizes down to empty.
func SanitizeArray(items []string, maxItems, maxItemLen int) []string {
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if clean := SanitizeText(item, maxItemLen); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

// IsValidSlug reports whether s is lowercase alphanumeric with internal
// hyphens and within the given length range.
func IsValidSlug(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	return slugPattern.MatchString(s)
}

// NormalizeID accepts a positive integer ID as a JSON number or digit-only
// string and returns its canonical decimal form.
func NormalizeID(v interface{}) (string, bool) {
	switch id := v.(type) {
	case float64:
		if id != float64(int64(id)) || id <= 0 {
			return "", false
		}
		return strconv.FormatInt(int64(id), 10), true
	case int:
		if id <= 0 {
			return "", false
		}
		return strconv.Itoa(id), true
	case string:
		if !digitsOnly.MatchString(id) {
			return "", false
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	default:
		return "", false
	}
}

// IsValidVideoURL reports whether s is an absolute https URL on one of the
// allowed video hosts (or a subdomain of one).
func IsValidVideoURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return false
	}
	for _, allowed := range allowedVideoHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// Slugify converts free text into the site's slug form: apostrophes dropped,
// "%" spelled out, everything else down to lowercase alphanumerics and hyphens.
func Slugify(s string) string {
	s = strings.NewReplacer("'", "", "’", "").Replace(s)
	s = strings.ReplaceAll(s, "%", "-percent")
	return slug.Make(s)
}
