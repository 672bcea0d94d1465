package util

import (
	"regexp"
)

const (
	// MaxRedactLength bounds the input scanned for secrets.
	// Longer input is truncated before redaction.
	MaxRedactLength = 64 * 1024

	// Redacted replaces every secret value
	Redacted = "REDACTED"
)

// secretPatterns is applied in order by RedactSecrets
var secretPatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	// key=value, key: value, "key":"value" for password/token/api-key/secret families
	{regexp.MustCompile(`(?i)(password|passwd|pwd|access[_-]?token|refresh[_-]?token|token|api[_-]?key|apikey|client[_-]?secret|secret)("?\s*[:=]\s*["']?)([^\s"'&,;)]+)`), "${1}${2}" + Redacted},
	{regexp.MustCompile(`(?i)bearer\s+[a-z0-9_\-\.=]+`), "Bearer " + Redacted},
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "REDACTED_AWS_KEY"},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_\-]+\.eyJ[a-zA-Z0-9_\-]+\.[a-zA-Z0-9_\-]+`), "REDACTED_JWT"},
	{regexp.MustCompile(`(?s)-----BEGIN (RSA |DSA |EC |OPENSSH )?PRIVATE KEY-----.*?-----END (RSA |DSA |EC |OPENSSH )?PRIVATE KEY-----`), "REDACTED_PRIVATE_KEY"},
}

// RedactSecrets removes password, token, api-key and secret values from s.
// It is applied to every payload and user agent before a security event is stored.
func RedactSecrets(s string) string {
	if s == "" {
		return ""
	}
	if len(s) > MaxRedactLength {
		s = s[:MaxRedactLength]
	}

	result := s
	for _, p := range secretPatterns {
		result = p.pattern.ReplaceAllString(result, p.replacement)
	}
	return result
}

// RedactError returns err's message with secrets removed, or "" for nil
func RedactError(err error) string {
	if err == nil {
		return ""
	}
	return RedactSecrets(err.Error())
}
