package autherr

import "regexp"

// Patterns removed from database error text before it is logged or mapped.
// Order matters: emails before hostnames, UUIDs before bare hex.
var sanitizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
	regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`),
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}(?::\d+)?\b`),
	regexp.MustCompile(`(?:[A-Za-z]:)?(?:[\\/][\w.-]+){2,}`),
	regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`),
}

// Sanitize strips emails, UUID tokens, IPs, file paths, and long hex
// strings from an error message so internal details never reach callers.
func Sanitize(message string) string {
	for _, p := range sanitizePatterns {
		message = p.ReplaceAllString(message, "[redacted]")
	}
	return message
}
