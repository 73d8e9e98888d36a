package logging

import (
	"net/url"
	"strings"
)

const redacted = "REDACTED"

// RedactURI replaces the values of the named query parameters in a request
// URI. Other parameters and their order are kept as sent.
func RedactURI(uri string, params ...string) string {
	path, query, ok := strings.Cut(uri, "?")
	if !ok || query == "" {
		return uri
	}

	parts := strings.Split(query, "&")
	for i, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		if name, err := url.QueryUnescape(key); err == nil {
			key = name
		}
		for _, p := range params {
			if key == p {
				parts[i] = p + "=" + redacted
				break
			}
		}
	}
	return path + "?" + strings.Join(parts, "&")
}
