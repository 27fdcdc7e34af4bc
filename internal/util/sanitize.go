package util

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"compass-auth/pkg/apierror"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)
	nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)
)

const fallbackUsername = "user"

// NormalizeEmail strips invisible characters, trims and lowercases an email
// address and rejects anything without exactly one "@" between non-empty parts.
func NormalizeEmail(email string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(stripInvisible(email)))
	if cleaned == "" {
		return "", apierror.BadRequest("email is required", "")
	}

	local, domain, found := strings.Cut(cleaned, "@")
	if !found || local == "" || domain == "" || strings.Contains(domain, "@") || strings.ContainsAny(cleaned, " \t") {
		return "", apierror.BadRequest("email is invalid", "")
	}

	return cleaned, nil
}

func SanitizeUsername(username string) (string, error) {
	cleaned := strings.TrimSpace(stripInvisible(username))
	if cleaned == "" {
		return "", apierror.BadRequest("username is required", "")
	}

	if !usernamePattern.MatchString(cleaned) {
		return "", apierror.BadRequest("username must be 3-32 letters, digits, '.', '_' or '-'", cleaned)
	}

	return cleaned, nil
}

// UsernameBaseFromEmail derives a username stem from the local part of an
// email address with every non-alphanumeric character removed.
func UsernameBaseFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	base := nonAlphanumeric.ReplaceAllString(local, "")
	if base == "" {
		return fallbackUsername
	}
	return base
}

// IsEducationalEmail reports whether the address belongs to a .edu domain.
func IsEducationalEmail(email string) bool {
	_, domain, found := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	return found && strings.HasSuffix(domain, ".edu") && len(domain) > len(".edu")
}

// RandomHex returns n random bytes hex encoded.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func stripInvisible(value string) string {
	builder := strings.Builder{}
	builder.Grow(len(value))

	for _, char := range value {
		if unicode.IsControl(char) || isInvisibleUnicode(char) {
			continue
		}
		builder.WriteRune(char)
	}

	return builder.String()
}

// isInvisibleUnicode returns true for zero-width, formatting, and other
// invisible Unicode characters that should never reach an identifier.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // Zero-Width Space
		'\u200C', // Zero-Width Non-Joiner
		'\u200D', // Zero-Width Joiner
		'\u200E', // Left-to-Right Mark
		'\u200F', // Right-to-Left Mark
		'\u2060', // Word Joiner
		'\uFEFF': // Zero-Width No-Break Space / BOM
		return true
	}

	return unicode.Is(unicode.Cf, r)
}
