package push

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "***"

var userinfoPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/@\s]+@`)

// safeUrl drops the credentials of a URL before it is logged.
func safeUrl(rawUrl string) string {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return scrub(rawUrl, "")
	}

	parsed.User = nil
	return parsed.String()
}

// scrub hides token and any URL userinfo inside free text such as git's stderr.
func scrub(text, token string) string {
	if token != "" {
		text = strings.ReplaceAll(text, token, redacted)
		if escaped := url.QueryEscape(token); escaped != token {
			text = strings.ReplaceAll(text, escaped, redacted)
		}
	}

	return userinfoPattern.ReplaceAllString(text, "${1}"+redacted+"@")
}
