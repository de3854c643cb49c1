package bridge

import (
	"math"
	"strconv"
	"strings"
)

// parseInt follows Tcl 8.6 integer syntax: optional sign, decimal, 0x hex,
// 0o or leading-zero octal, 0b binary, surrounding whitespace allowed.
func parseInt(s string) (int64, error) {
	t := strings.TrimSpace(s)
	if t == "" || strings.ContainsRune(t, '_') {
		return 0, &ConversionError{Value: s, Kind: "integer"}
	}

	n, err := strconv.ParseInt(t, 0, 64)
	if err != nil {
		return 0, &ConversionError{Value: s, Kind: "integer", Err: err}
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	if n, err := parseInt(s); err == nil {
		return float64(n), nil
	}

	t := strings.TrimSpace(s)
	if t == "" || strings.ContainsRune(t, '_') || isHexFloat(t) || isBadOctal(t) {
		return 0, &ConversionError{Value: s, Kind: "floating-point number"}
	}

	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, &ConversionError{Value: s, Kind: "floating-point number", Err: err}
	}
	return f, nil
}

func isHexFloat(t string) bool {
	t = strings.TrimLeft(t, "+-")
	return len(t) > 1 && t[0] == '0' && (t[1] == 'x' || t[1] == 'X')
}

// isBadOctal reports a digit string with a leading zero that parseInt
// already refused. Tcl reads it as an invalid octal integer, never as a
// decimal real.
func isBadOctal(t string) bool {
	t = strings.TrimLeft(t, "+-")
	if len(t) < 2 || t[0] != '0' {
		return false
	}
	for _, c := range t {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

var boolWords = []struct {
	word  string
	value bool
}{
	{"true", true},
	{"yes", true},
	{"on", true},
	{"false", false},
	{"no", false},
	{"off", false},
}

// parseBool applies Tcl truthiness: any number, or a unique prefix of
// true/false/yes/no/on/off in any case.
func parseBool(s string) (bool, error) {
	if f, err := parseFloat(s); err == nil {
		if math.IsNaN(f) {
			return false, &ConversionError{Value: s, Kind: "boolean value"}
		}
		return f != 0, nil
	}

	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return false, &ConversionError{Value: s, Kind: "boolean value"}
	}

	matches := 0
	var value bool
	for _, w := range boolWords {
		if strings.HasPrefix(w.word, t) {
			matches++
			value = w.value
		}
	}
	if matches != 1 {
		return false, &ConversionError{Value: s, Kind: "boolean value"}
	}
	return value, nil
}
