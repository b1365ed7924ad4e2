package callbacks

import (
	"fmt"
	"strconv"
	"strings"
)

// Int parses a numeric payload such as a page index.
func Int(payload string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(payload))
}

// TwoInt64 parses a payload of exactly two ids joined by sep, e.g. "123|4".
func TwoInt64(payload, sep string) (int64, int64, error) {
	first, second, ok := strings.Cut(payload, sep)
	if !ok || strings.Contains(second, sep) {
		return 0, 0, fmt.Errorf("callbacks: payload %q: want two values", payload)
	}
	a, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseInt(second, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// Join renders parts with sep. It is the inverse of TwoInt64 for two ids.
func Join(sep string, parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		switch v := p.(type) {
		case string:
			s[i] = v
		case int:
			s[i] = strconv.Itoa(v)
		case int64:
			s[i] = strconv.FormatInt(v, 10)
		default:
			s[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(s, sep)
}
