package shared

import "strings"

// SafeRedirect returns target when it is a local absolute path and fallback
// otherwise, so user supplied redirect targets cannot leave the site.
func SafeRedirect(target, fallback string) string {
	target = strings.TrimSpace(target)
	if target == "" || !strings.HasPrefix(target, "/") {
		return fallback
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") || strings.ContainsAny(target, "\r\n") {
		return fallback
	}
	return target
}
