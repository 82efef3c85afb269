package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// normalizeEmail lower-cases and trims, then checks the shape.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) > 255 || !emailPattern.MatchString(email) {
		return "", fmt.Errorf("%w: malformed email", ErrInvalid)
	}
	return email, nil
}

// validateUsername 3-20 个字符，字母数字下划线
func validateUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return "", fmt.Errorf("%w: username must be 3-20 letters, digits or underscores", ErrInvalid)
	}
	return username, nil
}

// collapseWhitespace folds every whitespace run into one space and trims.
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// validateLength checks the length of the whitespace-normalized text but
// returns the text as written, with only the outer whitespace trimmed.
func validateLength(field, text string, minLen, maxLen int) (string, error) {
	n := utf8.RuneCountInString(collapseWhitespace(text))
	if n < minLen {
		return "", fmt.Errorf("%w: %s must be at least %d characters", ErrInvalid, field, minLen)
	}
	if maxLen > 0 && n > maxLen {
		return "", fmt.Errorf("%w: %s must be at most %d characters", ErrInvalid, field, maxLen)
	}
	return strings.TrimSpace(text), nil
}
