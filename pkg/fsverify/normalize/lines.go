package normalize

import (
	"strconv"
	"strings"
)

// splitLines splits raw output into lines without their terminators.
// A trailing newline does not produce an extra empty line.
func splitLines(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	text := strings.TrimSuffix(string(raw), "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseUint(source string, line, field int, text string) (uint64, error) {
	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, &ParseError{Source: source, Line: line, Field: field, Text: text, Err: errNotInteger}
	}
	return n, nil
}

func parseInt(source string, line, field int, text string) (int64, error) {
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, &ParseError{Source: source, Line: line, Field: field, Text: text, Err: errNotInteger}
	}
	return n, nil
}
