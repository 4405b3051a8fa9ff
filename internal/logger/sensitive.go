// sensitive.go
package logger

import (
	"regexp"
)

// SensitiveDataPatterns contains regex patterns for sensitive data that should be redacted in logs
var SensitiveDataPatterns = []*regexp.Regexp{
	// user:password@ in DSNs and service URLs
	regexp.MustCompile(`(://[^:/@\s]+:)([^@\s]+)(@)`),
	regexp.MustCompile(`(?i)((api|access|auth|token|secret|key|passw(or)?d)[0-9a-z\-_\.]*[\s:=]+)([^;,\s]{5,})`),
}

// RedactSensitiveData replaces credentials in URLs and key=value pairs with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}

	input = SensitiveDataPatterns[0].ReplaceAllString(input, "${1}[REDACTED]${3}")
	input = SensitiveDataPatterns[1].ReplaceAllString(input, "${1}[REDACTED]")
	return input
}
