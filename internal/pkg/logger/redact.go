package logger

import "strings"

// RedactPhone masks a phone number for safe logging, keeping the country
// code and last two digits so an operator can still correlate entries.
// "+15551234567" → "+1***67". Numbers too short to mask meaningfully are
// fully masked.
func RedactPhone(phone string) string {
	var digits strings.Builder
	plus := strings.HasPrefix(strings.TrimSpace(phone), "+")
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 6 {
		return "***"
	}
	prefix := ""
	if plus {
		// Keep a 1-digit country code for + numbers
		prefix = "+" + d[:1]
	}
	return prefix + "***" + d[len(d)-2:]
}
