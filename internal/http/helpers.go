package http

import (
	"strings"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// wantsHTML reports whether a request came from HTMX or asks for HTML,
// which decides the format of error responses on shared routes.
func wantsHTML(hxRequest, accept string) bool {
	return hxRequest == "true" || strings.Contains(accept, "text/html")
}
