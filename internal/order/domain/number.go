package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	orderNumberPrefix = "ORD-"
	FirstOrderNumber  = "ORD-000001"
)

func FormatOrderNumber(n int64) string {
	return fmt.Sprintf("ORD-%06d", n)
}

func ParseOrderNumber(s string) (int64, error) {
	if !strings.HasPrefix(s, orderNumberPrefix) {
		return 0, fmt.Errorf("malformed order number %q", s)
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(s, orderNumberPrefix), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("malformed order number %q", s)
	}
	return n, nil
}

// NextOrderNumber increments the greatest allocated number; an empty last
// value yields the seed.
func NextOrderNumber(last string) (string, error) {
	if last == "" {
		return FirstOrderNumber, nil
	}
	n, err := ParseOrderNumber(last)
	if err != nil {
		return "", err
	}
	return FormatOrderNumber(n + 1), nil
}
