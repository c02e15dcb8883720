package chart

import (
	"regexp"
	"strconv"
	"strings"
)

// Series is a labelled numeric sequence ready for a bar or line chart.
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

var (
	colonPattern  = regexp.MustCompile(`([^:]+):\s*([\d,]+)`)
	numberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

// ParseSeries reads one point per non-empty line. "Label: 1,234" lines are
// tried first, then "label,value" CSV rows; lines matching neither (such as
// a CSV header) are skipped. ok is false when no point was found.
func ParseSeries(data string) (Series, bool) {
	var s Series
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if label, value, ok := parseColon(line); ok {
			s.Labels = append(s.Labels, label)
			s.Values = append(s.Values, value)
			continue
		}
		if label, value, ok := parseCSV(line); ok {
			s.Labels = append(s.Labels, label)
			s.Values = append(s.Values, value)
		}
	}
	return s, len(s.Values) > 0
}

func parseColon(line string) (string, float64, bool) {
	m := colonPattern.FindStringSubmatch(line)
	if m == nil {
		return "", 0, false
	}
	digits := strings.ReplaceAll(m[2], ",", "")
	if digits == "" {
		return "", 0, false
	}
	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return strings.TrimSpace(m[1]), float64(value), true
}

func parseCSV(line string) (string, float64, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return "", 0, false
	}
	label := trimQuotes(strings.TrimSpace(parts[0]))
	value, ok := leadingFloat(trimQuotes(strings.TrimSpace(parts[1])))
	if !ok {
		return "", 0, false
	}
	return label, value, true
}

// leadingFloat parses the numeric prefix of s, ignoring trailing text.
func leadingFloat(s string) (float64, bool) {
	prefix := numberPattern.FindString(strings.TrimSpace(s))
	if prefix == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func trimQuotes(s string) string {
	s = strings.TrimPrefix(s, `"`)
	return strings.TrimSuffix(s, `"`)
}
