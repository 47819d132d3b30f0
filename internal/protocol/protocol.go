// Package protocol holds the pieces of the text command protocol shared by
// the interpreter and the mode implementations.
package protocol

import "strings"

// Source identifies where a command line came from.
type Source uint8

const (
	SourceSerial Source = iota
	SourceRadio
	SourceSchedule
	SourceAPI
)

func (s Source) String() string {
	switch s {
	case SourceSerial:
		return "serial"
	case SourceRadio:
		return "radio"
	case SourceSchedule:
		return "schedule"
	case SourceAPI:
		return "api"
	}
	return "unknown"
}

// Command is one received line. ToMe is true for serial input and for radio
// packets whose target id matches this node.
type Command struct {
	Text     string
	SenderID uint8
	ToMe     bool
	Source   Source
}

// HasPrefixFold reports whether s begins with prefix, ignoring ASCII case.
func HasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// After returns the text following the first occurrence of key in s.
func After(s, key string) (string, bool) {
	i := strings.Index(s, key)
	if i < 0 {
		return "", false
	}
	return s[i+len(key):], true
}

// ReportValue extracts a reading like "T:+20.58" from a sensor report and
// returns it in tenths, truncating further digits. Reports look like
// "C:1769, B:198, T:+20.58 R:45.46".
func ReportValue(report, key string) (int16, bool) {
	rest, ok := After(report, key)
	if !ok {
		return 0, false
	}
	rest = strings.TrimLeft(rest, " ")

	neg := false
	if rest != "" && (rest[0] == '+' || rest[0] == '-') {
		neg = rest[0] == '-'
		rest = rest[1:]
	}

	var whole, digits int
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		whole = whole*10 + int(rest[digits]-'0')
		if whole > 3276 {
			return 0, false
		}
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	v := whole * 10
	rest = rest[digits:]
	if len(rest) >= 2 && rest[0] == '.' && rest[1] >= '0' && rest[1] <= '9' {
		v += int(rest[1] - '0')
	}
	if neg {
		v = -v
	}
	return int16(v), true
}
