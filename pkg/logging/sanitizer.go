package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength bounds how much of a generated probe query is
	// logged. Join-count queries grow with the candidate length.
	MaxQueryLogLength = 100

	// RedactedText replaces credential material in log output.
	RedactedText = "[REDACTED]"
)

// Credential shapes that show up in DSNs, driver errors, and provider
// errors. Key-value pairs cover libpq and ADO style strings; the URL
// form covers user:pass@host DSNs.
var (
	passwordPattern   = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)
	jwtPattern        = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)
	apiKeyPattern     = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)
)

func redactCredentials(s string) string {
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(s, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeConnectionString redacts credentials from a datasource or
// catalog DSN before it is logged.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	return redactCredentials(connStr)
}

// SanitizeError renders an error for logging. Database drivers and the
// embedding provider both echo connection details and tokens back in
// their messages.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	s = jwtPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	s = apiKeyPattern.ReplaceAllString(s, "${1}="+RedactedText)
	return redactCredentials(s)
}

// SanitizeQuery truncates a generated SQL query and redacts anything
// credential-shaped that survived into it. Truncation runs first so the
// redaction cost stays bounded.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}
	sanitized := TruncateString(query, MaxQueryLogLength)
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
}

// TruncateString cuts s at maxLen, marking the cut with an ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
