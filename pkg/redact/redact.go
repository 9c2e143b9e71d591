package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

// Candidate answers routinely repeat contact details from the resume, so
// masking covers the patterns a resume is likely to leak.
var (
	emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phoneRe = regexp.MustCompile(`\b\+?\d[\d\s\-]{7,}\d\b`)
)

// maxLogLen caps how much of an answer ends up in a log line.
const maxLogLen = 160

// SetEnabled toggles PII masking. Truncation applies regardless.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Enabled returns true when PII masking is active.
func Enabled() bool {
	return enabled.Load()
}

// Text prepares free-form candidate text for logging: it truncates long
// answers and, when masking is enabled, replaces emails and phone numbers.
func Text(in string) string {
	out := in
	if enabled.Load() && strings.TrimSpace(out) != "" {
		out = emailRe.ReplaceAllString(out, "[REDACTED_EMAIL]")
		out = phoneRe.ReplaceAllString(out, "[REDACTED_PHONE]")
	}
	if len(out) > maxLogLen {
		out = out[:maxLogLen] + "..."
	}
	return out
}
