package pan

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	MinLength = 13
	MaxLength = 19
)

// Normalize removes every whitespace character from an entered card number.
// Separators other than whitespace are kept so they fail the digit check.
func Normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

var (
	ErrRequired = errors.New("card number is required")
	ErrFormat   = errors.New("card number must contain digits only")
	ErrLength   = fmt.Errorf("card number must be %d to %d digits", MinLength, MaxLength)
)

// Validate checks an entered card number after Normalize: present, digits
// only, then 13..19 long, reporting the first failure. The Luhn check digit
// is not enforced; terminals accept test numbers as typed.
func Validate(s string) error {
	number := Normalize(s)
	switch {
	case number == "":
		return ErrRequired
	case !IsDigits(number):
		return ErrFormat
	case len(number) < MinLength || len(number) > MaxLength:
		return ErrLength
	}
	return nil
}

func IsDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func LastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Mask keeps the first six and last four digits of long numbers and only the
// last four of short ones.
func Mask(s string) string {
	cleaned := Normalize(s)
	n := len(cleaned)
	if n == 0 {
		return ""
	}
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	if n < 10 {
		return strings.Repeat("*", n-4) + cleaned[n-4:]
	}
	return cleaned[:6] + strings.Repeat("*", n-10) + cleaned[n-4:]
}
