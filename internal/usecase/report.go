package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"adlens/internal/domain"
)

// footer markers emitted by report generators ahead of summary rows
var totalsMarkers = []string{"total", "итого", "всего"}

// GuessDelimiter picks the field separator for a raw report blob. Tab is
// the primary report format, semicolon a common regional fallback.
func GuessDelimiter(raw string) string {
	if strings.Contains(raw, "\t") {
		return "\t"
	}
	if strings.Contains(raw, ";") {
		return ";"
	}
	return ","
}

// a line is a header only if it has at least two fields and every field
// is non-empty and does not read as a bare number once dots and
// underscores are stripped
func looksLikeHeader(fields []string) bool {
	if len(fields) < 2 {
		return false
	}
	for _, f := range fields {
		s := strings.TrimSpace(f)
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, "_", "")
		if s == "" {
			return false
		}
		digitsOnly := true
		for _, r := range s {
			if r < '0' || r > '9' {
				digitsOnly = false
				break
			}
		}
		if digitsOnly {
			return false
		}
	}
	return true
}

// ParseDelimited turns a raw delimited report blob into column-keyed rows.
// When delimiter is empty it is auto-detected; when columns is empty the
// first line is used as a header if it looks like one, otherwise names
// col_0, col_1, ... are synthesized. Totals footer rows and lines whose
// field count does not match the resolved columns are dropped silently.
// maxRows > 0 caps the output. Empty input is not an error.
func ParseDelimited(raw, delimiter string, columns []string, maxRows int) ([]domain.ReportRow, []string) {
	rows := []domain.ReportRow{}
	if strings.TrimSpace(raw) == "" {
		return rows, columns
	}
	if delimiter == "" {
		delimiter = GuessDelimiter(raw)
	}

	var lines []string
	for _, ln := range strings.Split(raw, "\n") {
		ln = strings.TrimRight(ln, "\r")
		if strings.TrimSpace(ln) == "" {
			continue
		}
		lines = append(lines, ln)
	}

	resolved := columns
	start := 0
	if len(resolved) == 0 && len(lines) > 0 {
		first := strings.Split(lines[0], delimiter)
		if looksLikeHeader(first) {
			resolved = make([]string, len(first))
			for i, f := range first {
				resolved[i] = strings.TrimSpace(f)
			}
			start = 1
		} else {
			resolved = make([]string, len(first))
			for i := range first {
				resolved[i] = fmt.Sprintf("col_%d", i)
			}
		}
	}

	for _, ln := range lines[start:] {
		low := strings.ToLower(strings.TrimSpace(ln))
		skip := false
		for _, marker := range totalsMarkers {
			if strings.HasPrefix(low, marker) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		fields := strings.Split(ln, delimiter)
		if len(fields) != len(resolved) {
			continue
		}
		row := make(domain.ReportRow, len(resolved))
		for i, col := range resolved {
			row[col] = strings.TrimSpace(fields[i])
		}
		rows = append(rows, row)
		if maxRows > 0 && len(rows) >= maxRows {
			break
		}
	}
	return rows, resolved
}

// FloatOrZero parses a numeric report field tolerantly: thousands spaces
// and non-breaking spaces are stripped, a comma decimal separator becomes
// a dot, and anything unparseable degrades to zero.
func FloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
