package gateway

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/alovak/terminal-playground/gateway/models"
)

// Decider fabricates the authorization outcome of a payment. No real
// authorization happens behind it.
type Decider interface {
	Decide(req models.PaymentRequest) models.TransactionStatus
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(req models.PaymentRequest) models.TransactionStatus

func (f DeciderFunc) Decide(req models.PaymentRequest) models.TransactionStatus { return f(req) }

// Approval policies.
const (
	PolicyRandom  = "random"
	PolicyApprove = "approve"
)

// ApproveAll approves every request.
var ApproveAll = DeciderFunc(func(models.PaymentRequest) models.TransactionStatus {
	return models.TransactionStatusApproved
})

// RandomDecider approves with a fixed probability.
type RandomDecider struct {
	rate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomDecider(rate float64, seed int64) *RandomDecider {
	return &RandomDecider{rate: rate, rnd: rand.New(rand.NewSource(seed))}
}

func (d *RandomDecider) Decide(models.PaymentRequest) models.TransactionStatus {
	d.mu.Lock()
	draw := d.rnd.Float64()
	d.mu.Unlock()

	if draw < d.rate {
		return models.TransactionStatusApproved
	}
	return models.TransactionStatusDeclined
}

// NewDecider builds the decider for a configured policy.
func NewDecider(policy string, rate float64, seed int64) (Decider, error) {
	switch policy {
	case PolicyApprove:
		return ApproveAll, nil
	case PolicyRandom, "":
		if rate < 0 || rate > 1 {
			return nil, fmt.Errorf("approval rate must be within [0,1], got %v", rate)
		}
		return NewRandomDecider(rate, seed), nil
	}
	return nil, fmt.Errorf("unsupported approval policy %q", policy)
}
