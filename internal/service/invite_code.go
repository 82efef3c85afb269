package service

import (
	"fmt"
	"regexp"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CodeAlphabet leaves out I, O, 0 and 1 so codes can be read aloud and typed.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	DefaultCodePrefix        = "EIGA"
	DefaultCodeSegments      = 3
	DefaultCodeSegmentLength = 4

	maxCodeLength = 32
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]+(?:-[A-Z0-9]+)+$`)

// GenerateCode builds a code of segments dash-separated parts. When prefix is
// not empty it is the first part, so the defaults yield EIGA-XXXX-XXXX.
func GenerateCode(segments, segmentLength int, prefix string) (string, error) {
	if segments < 2 || segmentLength < 1 {
		return "", fmt.Errorf("%w: a code needs at least two segments", ErrInvalid)
	}

	parts := make([]string, 0, segments)
	if prefix != "" {
		parts = append(parts, strings.ToUpper(prefix))
	}
	for len(parts) < segments {
		part, err := gonanoid.Generate(CodeAlphabet, segmentLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate code segment: %w", err)
		}
		parts = append(parts, part)
	}

	code := strings.Join(parts, "-")
	if !IsValidFormat(code) {
		return "", fmt.Errorf("%w: generated code %q does not match the code format", ErrInvalid, code)
	}
	return code, nil
}

// IsValidFormat is a purely syntactic check, it never touches the store.
func IsValidFormat(code string) bool {
	return len(code) <= maxCodeLength && codePattern.MatchString(code)
}

// NormalizeCode trims and upper-cases user input before validation.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
