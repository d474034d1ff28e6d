// SPDX-License-Identifier: MIT

package net

import (
	"fmt"
	"net/url"
	"strings"
)

// SanitizeURL removes user info and query parameters for safe logging.
func SanitizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	parsedURL.RawQuery = ""
	return parsedURL.String()
}

// ParseDirectHTTPURL validates that s is a plain http(s) URL with a host,
// no credentials and no fragment.
func ParseDirectHTTPURL(s string) (*url.URL, bool) {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, false
	}
	if u.Host == "" || u.User != nil || u.Fragment != "" {
		return nil, false
	}
	return u, true
}

// JoinPath appends a path element to an appliance base URL such as
// "http://192.168.1.20:80".
func JoinPath(base, elem string) (string, error) {
	u, ok := ParseDirectHTTPURL(base)
	if !ok {
		return "", fmt.Errorf("invalid base url %q", SanitizeURL(base))
	}
	return u.JoinPath(elem).String(), nil
}

// AppendQuery adds raw "k=v" pairs to a URL that may already carry a query,
// keeping the existing parameters in place.
func AppendQuery(raw string, pairs ...string) (string, error) {
	u, ok := ParseDirectHTTPURL(raw)
	if !ok {
		return "", fmt.Errorf("invalid url %q", SanitizeURL(raw))
	}
	q := u.RawQuery
	for _, p := range pairs {
		if q != "" {
			q += "&"
		}
		q += p
	}
	u.RawQuery = q
	return u.String(), nil
}
