package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, the way terminals send them.
	decimal.MarshalJSONWithoutQuotes = true
}

type TransactionStatus string

const (
	TransactionStatusApproved TransactionStatus = "APPROVED"
	TransactionStatusDeclined TransactionStatus = "DECLINED"
	TransactionStatusVoided   TransactionStatus = "VOIDED"
)

// CanTransitionTo reports whether the status machine allows s -> next.
// Only APPROVED -> VOIDED exists; DECLINED and VOIDED are terminal.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return s == TransactionStatusApproved && next == TransactionStatusVoided
}

const (
	DefaultTransactionType = "SALE"
	ApprovalCodeNone       = "N/A"

	ResponseCodeApproved = "00"
	ResponseCodeDeclined = "99"
)

type Transaction struct {
	ID              string            `json:"transaction_id"`
	Status          TransactionStatus `json:"status"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	ApprovalCode    string            `json:"approval_code"`
	ResponseCode    string            `json:"response_code,omitempty"`
	ResponseMessage string            `json:"response_message,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
	TransactionType string            `json:"transaction_type"`
	Protocol        string            `json:"protocol,omitempty"`
	CardLast4       string            `json:"card_last4,omitempty"`
}

type TransactionList struct {
	Transactions []Transaction `json:"transactions"`
}
