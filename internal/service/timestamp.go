package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxTimestampSeconds bounds a timestamp reference so every accepted value
// fits a 32-bit column on any store.
const MaxTimestampSeconds = math.MaxInt32

// ParseTimestamp turns "95", "12:34" (mm:ss) or "1:02:03" (h:mm:ss) into a
// non-negative number of seconds.
func ParseTimestamp(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty timestamp", ErrInvalid)
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: timestamp %q has too many fields", ErrInvalid, s)
	}

	values := make([]int, len(parts))
	for i, part := range parts {
		n, err := parseUnsigned(part)
		if err != nil {
			return 0, fmt.Errorf("%w: timestamp %q", ErrInvalid, s)
		}
		// 除第一段外，分和秒必须是两位以内且小于 60
		if i > 0 && (len(part) > 2 || n >= 60) {
			return 0, fmt.Errorf("%w: timestamp %q field out of range", ErrInvalid, s)
		}
		values[i] = n
	}

	// 先检查首段再相乘，避免溢出成负数
	unit := 1
	switch len(values) {
	case 2:
		unit = 60
	case 3:
		unit = 3600
	}
	if values[0] > MaxTimestampSeconds/unit {
		return 0, fmt.Errorf("%w: timestamp %q too large", ErrInvalid, s)
	}

	total := values[0] * unit
	switch len(values) {
	case 2:
		total += values[1]
	case 3:
		total += values[1]*60 + values[2]
	}
	if total > MaxTimestampSeconds {
		return 0, fmt.Errorf("%w: timestamp %q too large", ErrInvalid, s)
	}
	return total, nil
}

func parseUnsigned(s string) (int, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}

// FormatTimestamp renders seconds as m:ss or h:mm:ss.
func FormatTimestamp(seconds int) string {
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Timestamp is a position in the film in seconds. It binds from a JSON
// number, a JSON string, or a form value in any ParseTimestamp format.
type Timestamp int

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return t.UnmarshalText([]byte(s))
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: timestamp must be seconds or a clock string", ErrInvalid)
	}
	if n < 0 {
		return fmt.Errorf("%w: timestamp must not be negative", ErrInvalid)
	}
	if n > MaxTimestampSeconds {
		return fmt.Errorf("%w: timestamp too large", ErrInvalid)
	}
	*t = Timestamp(n)
	return nil
}

func (t *Timestamp) UnmarshalText(text []byte) error {
	n, err := ParseTimestamp(string(text))
	if err != nil {
		return err
	}
	*t = Timestamp(n)
	return nil
}

// UnmarshalParam lets gin's form binding use the same parser.
func (t *Timestamp) UnmarshalParam(param string) error {
	return t.UnmarshalText([]byte(param))
}

func (t *Timestamp) seconds() *int {
	if t == nil {
		return nil
	}
	n := int(*t)
	return &n
}
