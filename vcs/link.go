package vcs

import (
	"net/http"
	"strings"
)

// ParseNextLinks returns the target of every `rel="next"` entry found in the
// Link headers of a response. Quoting of the rel value is optional.
func ParseNextLinks(header http.Header) []string {
	next := []string{}

	for _, value := range header.Values("Link") {
		for _, section := range strings.Split(value, ",") {
			parts := strings.Split(section, ";")
			if len(parts) < 2 {
				continue
			}

			uri := strings.TrimSpace(parts[0])
			if !strings.HasPrefix(uri, "<") || !strings.HasSuffix(uri, ">") {
				continue
			}
			uri = strings.TrimSuffix(strings.TrimPrefix(uri, "<"), ">")

			for _, param := range parts[1:] {
				key, val, found := strings.Cut(param, "=")
				if !found || strings.TrimSpace(key) != "rel" {
					continue
				}

				if unquote(strings.TrimSpace(val)) == "next" {
					next = append(next, uri)
					break
				}
			}
		}
	}

	return next
}

func unquote(val string) string {
	for _, quote := range []string{`"`, `'`} {
		if len(val) >= 2 && strings.HasPrefix(val, quote) && strings.HasSuffix(val, quote) {
			return val[1 : len(val)-1]
		}
	}

	return val
}
