package parser

import (
	"errors"
	"fmt"
	"strings"
)

type Dialect string

const (
	DialectPlain    Dialect = "plain"
	DialectCSV      Dialect = "csv"
	DialectMarkdown Dialect = "markdown"
)

// ErrEmptySource is returned when no candidate survives filtering.
var ErrEmptySource = errors.New("source contains no candidate links")

// CandidateList is an immutable, non-empty, ordered list of candidate links.
type CandidateList []string

// ParseDialect maps a configuration value to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(name))) {
	case DialectPlain, "", "txt":
		return DialectPlain, nil
	case DialectCSV:
		return DialectCSV, nil
	case DialectMarkdown, "md":
		return DialectMarkdown, nil
	default:
		return "", fmt.Errorf("unknown source format %q", name)
	}
}

// Parse converts raw into a CandidateList using the given dialect.
func Parse(dialect Dialect, raw []byte) (CandidateList, error) {
	var out CandidateList

	switch dialect {
	case DialectMarkdown:
		out = parseMarkdown(raw)
	case DialectCSV:
		out = parseLines(string(raw), cleanCSVLine)
	default:
		out = parseLines(string(raw), cleanLine)
	}

	if len(out) == 0 {
		return nil, ErrEmptySource
	}

	return out, nil
}

func parseLines(text string, clean func(string) (string, bool)) CandidateList {
	lines := strings.Split(text, "\n")
	out := make(CandidateList, 0, len(lines))

	for _, line := range lines {
		if cleaned, ok := clean(line); ok {
			out = append(out, cleaned)
		}
	}

	return out
}

func cleanLine(line string) (string, bool) {
	line = strings.TrimSpace(stripControl(line))
	return line, line != ""
}

func cleanCSVLine(line string) (string, bool) {
	line, ok := cleanLine(line)
	if !ok {
		return "", false
	}

	line = strings.TrimSpace(strings.ReplaceAll(line, ",", ""))
	if len(line) >= 2 && line[0] == '"' && line[len(line)-1] == '"' {
		line = strings.TrimSpace(line[1 : len(line)-1])
	}

	if line == "" || !strings.HasPrefix(line, "http") {
		return "", false
	}

	return line, true
}

// stripControl removes ASCII control characters (U+0000-U+001F and U+007F).
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
