// Package mti renders terminal notifications as ISO 8583 frames. The frames
// are labels for operators and logs; nothing parses them to make decisions.
package mti

import (
	"fmt"
	"strings"
	"time"

	"github.com/moov-io/iso8583"
	"github.com/moov-io/iso8583/specs"
	"github.com/shopspring/decimal"
)

const (
	AuthorizationRequest      = "0100"
	AuthorizationResponse     = "0110"
	AdviceRequest             = "0220"
	AdviceResponse            = "0230"
	ReversalAdvice            = "0420"
	ReversalAdviceResponse    = "0430"
	NetworkManagementRequest  = "0800"
	NetworkManagementResponse = "0810"
)

var descriptions = map[string]string{
	AuthorizationRequest:      "Authorization Request",
	AuthorizationResponse:     "Authorization Response",
	AdviceRequest:             "Financial Transaction Advice",
	AdviceResponse:            "Financial Transaction Advice Response",
	ReversalAdvice:            "Reversal Request",
	ReversalAdviceResponse:    "Reversal Response",
	NetworkManagementRequest:  "Network Management Request",
	NetworkManagementResponse: "Network Management Response",
}

// Describe returns the human readable name of a message type.
func Describe(code string) string {
	if d, ok := descriptions[code]; ok {
		return d
	}
	return "Unknown Message"
}

// Processing codes (DE3).
const (
	ProcessingPurchase = "000000"
	ProcessingVoid     = "020000"
	ProcessingPayout   = "280000"
	ProcessingEcho     = "990000"
)

// numeric ISO 4217 codes for DE49
var currencyNumeric = map[string]string{
	"USD": "840",
	"EUR": "978",
	"GBP": "826",
	"JPY": "392",
	"CAD": "124",
	"AUD": "036",
}

// Frame holds the data elements carried in a rendered message.
type Frame struct {
	MTI            string
	ProcessingCode string
	Amount         decimal.Decimal
	Currency       string
	STAN           uint32
	ApprovalCode   string
	ResponseCode   string
	TerminalID     string
	MerchantID     string
	Time           time.Time
}

// DE4 holds 12 digits of minor units.
var maxAmount = decimal.New(999_999_999_999, 0)

// Pack renders f with the ASCII 1987 spec. An amount that does not fit DE4
// leaves the field out; the frame is still rendered.
func Pack(f Frame) ([]byte, error) {
	msg := iso8583.NewMessage(specs.Spec87ASCII)
	msg.MTI(f.MTI)

	fields := map[int]string{}
	if f.ProcessingCode != "" {
		fields[3] = f.ProcessingCode
	}
	if minor := f.Amount.Shift(2).Round(0); minor.IsPositive() && minor.LessThanOrEqual(maxAmount) {
		fields[4] = fmt.Sprintf("%012d", minor.IntPart())
	}
	if !f.Time.IsZero() {
		fields[7] = f.Time.UTC().Format("0102150405")
	}
	fields[11] = fmt.Sprintf("%06d", f.STAN%1000000)
	if f.ApprovalCode != "" {
		fields[38] = fixed(f.ApprovalCode, 6)
	}
	if f.ResponseCode != "" {
		fields[39] = fixed(f.ResponseCode, 2)
	}
	if f.TerminalID != "" {
		fields[41] = fixed(f.TerminalID, 8)
	}
	if f.MerchantID != "" {
		fields[42] = fixed(f.MerchantID, 15)
	}
	if code, ok := currencyNumeric[strings.ToUpper(f.Currency)]; ok {
		fields[49] = code
	}

	for id, val := range fields {
		if err := msg.Field(id, val); err != nil {
			return nil, fmt.Errorf("setting field %d: %w", id, err)
		}
	}

	packed, err := msg.Pack()
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", f.MTI, err)
	}
	return packed, nil
}

// Unpack parses a frame produced by Pack.
func Unpack(b []byte) (*iso8583.Message, error) {
	msg := iso8583.NewMessage(specs.Spec87ASCII)
	if err := msg.Unpack(b); err != nil {
		return nil, fmt.Errorf("unpacking message: %w", err)
	}
	return msg, nil
}

// fixed right pads or truncates s to n characters for fixed length fields.
func fixed(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}
