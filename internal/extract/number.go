package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	multiplierPattern = regexp.MustCompile(`(\d[\d.,]*)\s*[xX]`)
	numberPattern     = regexp.MustCompile(`\d[\d.,]*`)
)

// ParseNumber reads a currency amount from recognized text, tolerating symbols,
// thousands separators and either decimal convention.
//
// Cleanup keeps only digits, '.' and ','. Of several dots only the last is
// treated as the decimal point. Several commas are all thousands separators.
// With both present, a final comma followed by exactly two digits is the decimal
// separator; otherwise commas are thousands separators. A lone comma is decimal
// only when exactly two digits follow it.
func ParseNumber(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s := b.String()

	if strings.Count(s, ".") > 1 {
		last := strings.LastIndex(s, ".")
		s = strings.ReplaceAll(s[:last], ".", "") + s[last:]
	}
	if strings.Count(s, ",") > 1 {
		s = strings.ReplaceAll(s, ",", "")
	}

	hasDot, hasComma := strings.Contains(s, "."), strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		if commaIsDecimal(s) && strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		if commaIsDecimal(s) {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	if s == "" || s == "." {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// commaIsDecimal reports whether exactly two digits follow the last comma.
func commaIsDecimal(s string) bool {
	tail := s[strings.LastIndex(s, ",")+1:]
	return len(tail) == 2 && isDigits(tail)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ParseMultiplier reads "150x", "2.5 X" and similar; plain numbers are accepted as a fallback.
func ParseMultiplier(text string) (float64, bool) {
	if m := multiplierPattern.FindStringSubmatch(text); m != nil {
		if v, ok := ParseNumber(m[1]); ok {
			return v, true
		}
	}
	return ParseNumber(text)
}

// firstNumber parses the first numeric run in text.
func firstNumber(text string) (float64, bool) {
	m := numberPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	return ParseNumber(m)
}
