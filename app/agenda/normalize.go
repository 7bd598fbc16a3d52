package agenda

import (
	"net/url"
	"strings"
)

var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// NormalizeURL resolves raw against base and returns the canonical absolute form.
// It never panics; ok is false for anything that is not an http(s) URL with a host.
// An empty base requires raw to already be absolute.
func NormalizeURL(raw, base string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return "", false
	}

	lower := strings.ToLower(raw)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	resolved := ref
	if !ref.IsAbs() {
		if base == "" {
			return "", false
		}
		baseURL, err := url.Parse(strings.TrimSpace(base))
		if err != nil || !baseURL.IsAbs() {
			return "", false
		}
		resolved = baseURL.ResolveReference(ref)
	}

	resolved.Scheme = strings.ToLower(resolved.Scheme)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if resolved.Host == "" {
		return "", false
	}

	resolved.Host = strings.ToLower(resolved.Host)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	resolved.User = nil
	stripTrackingParams(resolved)

	return resolved.String(), true
}

// stripTrackingParams drops tracking parameters from the raw query and keeps
// every other pair in its original order and encoding.
func stripTrackingParams(u *url.URL) {
	if u.RawQuery == "" {
		return
	}

	pairs := strings.Split(u.RawQuery, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if isTrackingParam(key) {
			continue
		}
		kept = append(kept, pair)
	}

	u.RawQuery = strings.Join(kept, "&")
	u.ForceQuery = false
}

func isTrackingParam(key string) bool {
	lk := strings.ToLower(key)
	return strings.HasPrefix(lk, "utm_") ||
		lk == "fbclid" || lk == "gclid" || lk == "msclkid" ||
		lk == "mc_cid" || lk == "mc_eid"
}
