package models

import (
	"time"

	"github.com/alovak/terminal-playground/internal/protocol"
	"github.com/alovak/terminal-playground/internal/validation"
	"github.com/shopspring/decimal"
)

// PaymentRequest is consumed once to produce a Transaction; it is never stored.
type PaymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	CardNumber      string          `json:"card_number"`
	ExpiryDate      string          `json:"expiry_date"`
	CVV             string          `json:"cvv"`
	CardholderName  string          `json:"cardholder_name"`
	PostalCode      string          `json:"postal_code,omitempty"`
	Protocol        string          `json:"protocol"`
	AuthCode        string          `json:"auth_code"`
	TransactionType string          `json:"transaction_type,omitempty"`
}

// Fields converts the request into validation form fields.
func (r PaymentRequest) Fields() validation.Fields {
	return validation.Fields{
		Amount:         r.Amount.String(),
		CardNumber:     r.CardNumber,
		Expiry:         r.ExpiryDate,
		CVV:            r.CVV,
		CardholderName: r.CardholderName,
		Protocol:       r.Protocol,
		AuthCode:       r.AuthCode,
	}
}

type TerminalInfo struct {
	MerchantID string `json:"merchant_id"`
	TerminalID string `json:"terminal_id"`
}

type ProtocolList struct {
	Protocols []protocol.Descriptor `json:"protocols"`
}

// PayoutSettings is stored as received; only its JSON object shape is checked.
type PayoutSettings struct {
	Settings  map[string]any `json:"settings"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Status struct {
	Status string `json:"status"`
}

type Message struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
