package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/alovak/terminal-playground/gateway/models"
)

var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrConflict     = fmt.Errorf("conflict")
	ErrInvalidState = fmt.Errorf("invalid state")
)

// Repository is the in-process transaction store. Records are kept in
// insertion order and handed out most recent first, always as copies.
type Repository struct {
	mu           sync.RWMutex
	transactions []*models.Transaction
	index        map[string]*models.Transaction
	payout       *models.PayoutSettings
}

func NewRepository() *Repository {
	return &Repository{
		transactions: make([]*models.Transaction, 0),
		index:        make(map[string]*models.Transaction),
	}
}

func (r *Repository) CreateTransaction(transaction *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[transaction.ID]; ok {
		return fmt.Errorf("transaction %s exists: %w", transaction.ID, ErrConflict)
	}
	t := *transaction
	r.transactions = append(r.transactions, &t)
	r.index[t.ID] = &t
	return nil
}

// ListTransactions returns every transaction, most recent first.
func (r *Repository) ListTransactions() []models.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Transaction, 0, len(r.transactions))
	for i := len(r.transactions) - 1; i >= 0; i-- {
		out = append(out, *r.transactions[i])
	}
	return out
}

func (r *Repository) GetTransaction(id string) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	found := *t
	return &found, nil
}

// UpdateStatus moves a transaction to next if the status machine allows it
// from the current status.
func (r *Repository) UpdateStatus(id string, next models.TransactionStatus) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !t.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%s -> %s: %w", t.Status, next, ErrInvalidState)
	}
	t.Status = next
	updated := *t
	return &updated, nil
}

func (r *Repository) SavePayoutSettings(settings map[string]any, at time.Time) models.PayoutSettings {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.payout = &models.PayoutSettings{Settings: settings, UpdatedAt: at}
	return *r.payout
}

func (r *Repository) GetPayoutSettings() (*models.PayoutSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.payout == nil {
		return nil, ErrNotFound
	}
	found := *r.payout
	return &found, nil
}
