package stringutil

import (
	"regexp"

	"github.com/garden-io/garden-core/pkg/logger"
)

var sanitizeLog = logger.New("stringutil:sanitize")

// Regex patterns for detecting potential secret key names
var (
	// Match uppercase snake_case identifiers that look like secret names (e.g., MY_SECRET_KEY, GITHUB_TOKEN, API_KEY)
	// Excludes common config-related keywords
	secretNamePattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]*_[A-Z0-9_]+)\b`)

	// Match PascalCase identifiers ending with security-related suffixes (e.g., GitHubToken, ApiKey, DeploySecret)
	pascalCaseSecretPattern = regexp.MustCompile(`\b([A-Z][a-z0-9]*(?:[A-Z][a-z0-9]*)*(?:Token|Key|Secret|Password|Credential|Auth))\b`)

	// Common non-sensitive identifiers to exclude from redaction: env vars and
	// config field names that routinely show up in action/graph error text.
	commonConfigKeywords = map[string]bool{
		"GARDEN":      true,
		"PROJECT":     true,
		"ENVIRONMENT": true,
		"ACTION":      true,
		"BUILD":       true,
		"DEPLOY":      true,
		"RUN":         true,
		"TEST":        true,
		"STATUS":      true,
		"MODULE":      true,
		"TEMPLATE":    true,
		"ENV":         true,
		"PATH":        true,
		"HOME":        true,
		"SHELL":       true,
		"INPUTS":      true,
		"OUTPUTS":     true,
		"SPEC":        true,
		"KIND":        true,
		"NAME":        true,
		"TYPE":        true,
		"VARIABLES":   true,
		"CONCURRENCY": true,
		"TIMEOUT":     true,
		"VERSION":     true,
		"SOURCE":      true,
		"IF":          true,
		"WITH":        true,
	}
)

// SanitizeErrorMessage removes potential secret key names from error messages before
// they reach logs or terminal output, so a plugin or provider error that happens to
// echo back an environment variable name doesn't leak it verbatim.
func SanitizeErrorMessage(message string) string {
	if message == "" {
		return message
	}

	sanitizeLog.Printf("Sanitizing error message: length=%d", len(message))

	// Redact uppercase snake_case patterns (e.g., MY_SECRET_KEY, API_TOKEN)
	sanitized := secretNamePattern.ReplaceAllStringFunc(message, func(match string) string {
		// Don't redact common config keywords
		if commonConfigKeywords[match] {
			return match
		}
		sanitizeLog.Printf("Redacted snake_case secret pattern: %s", match)
		return "[REDACTED]"
	})

	// Redact PascalCase patterns ending with security suffixes (e.g., GitHubToken, ApiKey)
	sanitized = pascalCaseSecretPattern.ReplaceAllString(sanitized, "[REDACTED]")

	if sanitized != message {
		sanitizeLog.Print("Error message sanitization applied redactions")
	}

	return sanitized
}
