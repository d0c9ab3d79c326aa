package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// LogPrefixLength is how much of a secret value may appear in logs.
const LogPrefixLength = 8

// Prefix returns the first LogPrefixLength characters of s for log correlation.
// Codes, tokens and remote codes must only be logged through this helper.
func Prefix(s string) string {
	if len(s) <= LogPrefixLength {
		return s
	}
	return s[:LogPrefixLength]
}

// RandomHex returns n random bytes from crypto/rand, hex encoded.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// MaskPhone keeps the last four digits.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "***"
	}
	return "***" + phone[len(phone)-4:]
}
