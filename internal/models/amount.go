package models

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var errNotAnAmount = errors.New("not an amount")

// ParseAmount parses a money amount typed by a person. It accepts currency
// symbols and codes before or after the number, thousands separators and
// either '.' or ',' as the decimal mark ("€2.500,50", "2,500.50", "2500",
// "1.500 EUR"). A single separator followed by exactly three digits is read
// as a thousands separator unless the integer part is 0 or longer than three
// digits. Every group after the first must have three digits. Negative
// amounts are returned as negative numbers; callers decide whether to accept
// them.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	start := strings.IndexFunc(s, isDigit)
	if start < 0 {
		return 0, errNotAnAmount
	}
	end := strings.LastIndexFunc(s, isDigit) + 1
	for _, r := range s[:start] {
		switch {
		case r == '-' || r == '−':
			negative = true
		case isAmountAffix(r):
		default:
			return 0, errNotAnAmount
		}
	}
	for _, r := range s[end:] {
		if !isAmountAffix(r) {
			return 0, errNotAnAmount
		}
	}
	n, err := parseGroupedNumber(s[start:end])
	if err != nil {
		return 0, err
	}
	if negative {
		n = -n
	}
	return n, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// isAmountAffix reports whether r may appear around the number: currency
// symbols, ISO codes and spaces.
func isAmountAffix(r rune) bool {
	return unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) || unicode.IsLetter(r)
}

func isGroupSeparator(r rune) bool {
	return r == '.' || r == ',' || r == '\'' || unicode.IsSpace(r)
}

// parseGroupedNumber parses digits with grouping and at most one decimal
// mark. s starts and ends with a digit.
func parseGroupedNumber(s string) (float64, error) {
	dots, commas := 0, 0
	for _, r := range s {
		switch {
		case isDigit(r):
		case r == '.':
			dots++
		case r == ',':
			commas++
		case r == '\'' || unicode.IsSpace(r):
		default:
			return 0, errNotAnAmount
		}
	}
	intPart, frac := s, ""
	switch {
	case dots > 0 && commas > 0:
		i := strings.LastIndexAny(s, ".,")
		if strings.Count(s, s[i:i+1]) != 1 {
			return 0, errNotAnAmount
		}
		intPart, frac = s[:i], s[i+1:]
	case dots+commas == 1:
		i := strings.IndexAny(s, ".,")
		if !isThousandsMark(s[:i], s[i+1:]) {
			intPart, frac = s[:i], s[i+1:]
		}
	}
	if frac != "" && strings.TrimFunc(frac, isDigit) != "" {
		return 0, errNotAnAmount
	}
	groups := splitGroups(intPart)
	for i, g := range groups {
		if g == "" || strings.TrimFunc(g, isDigit) != "" {
			return 0, errNotAnAmount
		}
		if len(groups) == 1 {
			break
		}
		if i == 0 && (len(g) > 3 || g[0] == '0') {
			return 0, errNotAnAmount
		}
		if i > 0 && len(g) != 3 {
			return 0, errNotAnAmount
		}
	}
	normalized := strings.Join(groups, "")
	if frac != "" {
		normalized += "." + frac
	}
	n, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, errNotAnAmount
	}
	return n, nil
}

// isThousandsMark reports whether a lone separator between head and tail
// groups thousands rather than marking decimals.
func isThousandsMark(head, tail string) bool {
	if len(tail) != 3 || strings.TrimFunc(tail, isDigit) != "" {
		return false
	}
	groups := splitGroups(head)
	last := groups[len(groups)-1]
	return len(last) <= 3 && head[0] != '0'
}

// splitGroups splits s at every grouping character, keeping empty groups.
func splitGroups(s string) []string {
	var groups []string
	from := 0
	for i, r := range s {
		if isGroupSeparator(r) {
			groups = append(groups, s[from:i])
			from = i + utf8.RuneLen(r)
		}
	}
	return append(groups, s[from:])
}
