package email

import "strings"

// RedactEmail masks an email address for logging, keeping only the first
// character of the local part and the full domain.
//
// If the input does not contain an "@", the entire string is masked to
// prevent accidental PII exposure in logs.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}

	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 {
		return "***"
	}

	local := parts[0]
	domain := parts[1]

	if len(local) == 0 {
		return "***@" + domain
	}

	return string(local[0]) + "***@" + domain
}
