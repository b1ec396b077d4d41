// Package validation gates payment form submission. Rules run in a fixed
// order and the first failing rule is reported.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alovak/terminal-playground/internal/expiry"
	"github.com/alovak/terminal-playground/internal/pan"
	"github.com/alovak/terminal-playground/internal/protocol"
	"github.com/shopspring/decimal"
)

// Fields are the payment form values as entered.
type Fields struct {
	Amount         string
	CardNumber     string
	Expiry         string
	CVV            string
	CardholderName string
	Protocol       string
	AuthCode       string
}

// ExpiryPolicy controls whether a past expiry month is rejected.
type ExpiryPolicy string

const (
	ExpiryLenient ExpiryPolicy = "lenient"
	ExpiryStrict  ExpiryPolicy = "strict"
)

func ParseExpiryPolicy(s string) (ExpiryPolicy, error) {
	switch p := ExpiryPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ExpiryLenient, ExpiryStrict:
		return p, nil
	}
	return "", fmt.Errorf("unsupported expiry policy %q", s)
}

type Options struct {
	Expiry ExpiryPolicy
	// Location is used to resolve the current month; UTC when nil.
	Location *time.Location
	Now      func() time.Time
}

// Error codes.
const (
	CodeRequired        = "required"
	CodeFormat          = "format"
	CodeRange           = "range"
	CodeLength          = "length"
	CodeExpired         = "expired"
	CodeUnknownProtocol = "unknown_protocol"
)

// ErrInvalid matches every *Error with errors.Is.
var ErrInvalid = errors.New("validation failed")

// Error describes the first rule a form failed.
type Error struct {
	Field  string
	Code   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

func fail(field, code, format string, a ...any) *Error {
	return &Error{Field: field, Code: code, Reason: fmt.Sprintf(format, a...)}
}

type rule func(f Fields, opts Options) *Error

var rules = []rule{
	checkAmount,
	checkCardNumber,
	checkExpiry,
	checkCVV,
	checkCardholder,
	checkProtocol,
	checkAuthCodeLength,
	checkAuthCodeClass,
}

// Validate returns nil when the form is submittable, otherwise an *Error.
func Validate(f Fields, opts Options) error {
	for _, r := range rules {
		if err := r(f, opts); err != nil {
			return err
		}
	}
	return nil
}

// ParseAmount parses a positive decimal amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	if err := checkAmount(Fields{Amount: s}, Options{}); err != nil {
		return decimal.Zero, err
	}
	return decimal.RequireFromString(strings.TrimSpace(s)), nil
}

func checkAmount(f Fields, _ Options) *Error {
	s := strings.TrimSpace(f.Amount)
	if s == "" {
		return fail("amount", CodeRequired, "amount is required")
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return fail("amount", CodeFormat, "amount must be numeric")
	}
	if !amount.IsPositive() {
		return fail("amount", CodeRange, "amount must be greater than 0")
	}
	return nil
}

func checkCardNumber(f Fields, _ Options) *Error {
	err := pan.Validate(f.CardNumber)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pan.ErrRequired):
		return fail("card_number", CodeRequired, "%v", err)
	case errors.Is(err, pan.ErrFormat):
		return fail("card_number", CodeFormat, "%v", err)
	}
	return fail("card_number", CodeLength, "%v", err)
}

func checkExpiry(f Fields, opts Options) *Error {
	if f.Expiry == "" {
		return fail("expiry_date", CodeRequired, "expiry date is required")
	}
	date, err := expiry.Parse(f.Expiry)
	if err != nil {
		return fail("expiry_date", CodeFormat, "%v", err)
	}
	if opts.Expiry != ExpiryStrict {
		return nil
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	if date.IsExpired(now(), opts.Location) {
		return fail("expiry_date", CodeExpired, "card expired %s", date.CardFace())
	}
	return nil
}

func checkCVV(f Fields, _ Options) *Error {
	if f.CVV == "" {
		return fail("cvv", CodeRequired, "CVV is required")
	}
	if l := len(f.CVV); l < 3 || l > 4 || !pan.IsDigits(f.CVV) {
		return fail("cvv", CodeFormat, "CVV must be 3 or 4 digits")
	}
	return nil
}

func checkCardholder(f Fields, _ Options) *Error {
	if strings.TrimSpace(f.CardholderName) == "" {
		return fail("cardholder_name", CodeRequired, "cardholder name is required")
	}
	return nil
}

func checkProtocol(f Fields, _ Options) *Error {
	if f.Protocol == "" {
		return fail("protocol", CodeRequired, "protocol is required")
	}
	if _, err := protocol.Lookup(f.Protocol); err != nil {
		return fail("protocol", CodeUnknownProtocol, "%v", err)
	}
	return nil
}

// The auth code rules run after checkProtocol, so Lookup cannot fail here.

func checkAuthCodeLength(f Fields, _ Options) *Error {
	d, _ := protocol.Lookup(f.Protocol)
	if n := len([]rune(f.AuthCode)); n != d.Length {
		return fail("auth_code", CodeLength, "auth code must be exactly %d characters (got %d)", d.Length, n)
	}
	return nil
}

func checkAuthCodeClass(f Fields, _ Options) *Error {
	d, _ := protocol.Lookup(f.Protocol)
	if !d.Matches(f.AuthCode) {
		if d.Class == protocol.Numeric {
			return fail("auth_code", CodeFormat, "auth code must contain digits only")
		}
		return fail("auth_code", CodeFormat, "auth code must contain letters and digits only")
	}
	return nil
}
