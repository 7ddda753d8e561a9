package scan

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseEnabled reads a scanner's enabled flag. Only the exact literal "false"
// disables a scanner; unset, empty and any other text leave it enabled.
func ParseEnabled(raw string) bool {
	return raw != "false"
}

// ParseCount parses a finding count: a non-negative decimal integer,
// surrounding whitespace allowed. Anything else yields 0 and false. A count
// too large for int saturates at math.MaxInt.
func ParseCount(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt, true
	}
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseCounts parses the three severity counts of a report. Each category
// that fails to parse counts as 0 and adds an anomaly.
func ParseCounts(high, medium, low string) (SeverityCounts, []string) {
	var anomalies []string
	parse := func(s Severity, raw string) int {
		n, ok := ParseCount(raw)
		if !ok {
			anomalies = append(anomalies, fmt.Sprintf("unparsable %s count %q treated as 0", s, raw))
		}
		return n
	}

	counts := SeverityCounts{
		High:   parse(SeverityHigh, high),
		Medium: parse(SeverityMedium, medium),
		Low:    parse(SeverityLow, low),
	}
	return counts, anomalies
}
