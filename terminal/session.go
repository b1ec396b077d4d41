package terminal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alovak/terminal-playground/gateway/models"
	"github.com/alovak/terminal-playground/internal/pan"
	"github.com/alovak/terminal-playground/internal/validation"
	"golang.org/x/exp/slog"
)

var (
	// ErrSuperseded is returned for a submission whose response arrived after
	// a newer submission was started. Its result is ignored.
	ErrSuperseded    = errors.New("submission superseded")
	ErrNoTransaction = errors.New("no transaction in this session")
)

// Session holds what a terminal shows: connectivity, the logged in
// merchant and terminal, the last transaction and a mirror of the
// gateway's history. The gateway stays authoritative.
type Session struct {
	client *Client
	opts   validation.Options
	logger *slog.Logger

	mu      sync.Mutex
	online  bool
	info    *models.TerminalInfo
	lastID  string
	history []models.Transaction
	seq     uint64
}

func NewSession(client *Client, opts validation.Options, logger *slog.Logger) *Session {
	return &Session{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// Login fetches the terminal identity once; later calls return the cached one.
func (s *Session) Login(ctx context.Context) (models.TerminalInfo, error) {
	s.mu.Lock()
	if s.info != nil {
		info := *s.info
		s.mu.Unlock()
		return info, nil
	}
	s.mu.Unlock()

	info, err := s.client.TerminalInfo(ctx)
	s.observe(err)
	if err != nil {
		return models.TerminalInfo{}, fmt.Errorf("fetching terminal info: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		s.info = info
	}
	s.logger.Info("terminal logged in",
		slog.String("merchant_id", s.info.MerchantID),
		slog.String("terminal_id", s.info.TerminalID),
	)
	return *s.info, nil
}

// Submit validates req locally and sends it. Validation errors never reach
// the gateway. Starting a new submission supersedes any one still in flight.
func (s *Session) Submit(ctx context.Context, req models.PaymentRequest) (*models.Transaction, error) {
	if err := validation.Validate(req.Fields(), s.opts); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	transaction, err := s.client.CreatePayment(ctx, req)
	s.observe(err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		s.logger.Info("ignoring superseded payment response", slog.String("card", pan.Mask(req.CardNumber)))
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}

	s.lastID = transaction.ID
	s.history = append([]models.Transaction{*transaction}, s.history...)
	return transaction, nil
}

func (s *Session) Void(ctx context.Context, id string) (*models.Transaction, error) {
	transaction, err := s.client.VoidTransaction(ctx, id)
	s.observe(err)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(*transaction)
	return transaction, nil
}

// VoidLast voids the most recently submitted transaction.
func (s *Session) VoidLast(ctx context.Context) (*models.Transaction, error) {
	s.mu.Lock()
	id := s.lastID
	s.mu.Unlock()

	if id == "" {
		return nil, ErrNoTransaction
	}
	return s.Void(ctx, id)
}

// Refresh replaces the mirrored history with the gateway's list.
func (s *Session) Refresh(ctx context.Context) error {
	transactions, err := s.client.ListTransactions(ctx)
	s.observe(err)
	if err != nil {
		return fmt.Errorf("refreshing history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = transactions
	return nil
}

// LastTransaction returns the mirrored copy of the last submitted
// transaction, as needed to print its receipt.
func (s *Session) LastTransaction() (models.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastID == "" {
		return models.Transaction{}, false
	}
	for _, t := range s.history {
		if t.ID == s.lastID {
			return t, true
		}
	}
	return models.Transaction{}, false
}

func (s *Session) History() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]models.Transaction, len(s.history))
	copy(history, s.history)
	return history
}

func (s *Session) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// RunProbe checks gateway status every interval until ctx is done.
func (s *Session) RunProbe(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := s.client.Status(ctx)
		if ctx.Err() != nil {
			return
		}
		s.observe(err)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// observe updates the online flag from the outcome of a request. Any
// response from the gateway, including an error one, means it is reachable.
func (s *Session) observe(err error) {
	online := !errors.Is(err, ErrNetwork)

	s.mu.Lock()
	defer s.mu.Unlock()

	if online != s.online {
		s.logger.Info("connectivity changed", slog.Bool("online", online))
	}
	s.online = online
}

// replace must be called with mu held.
func (s *Session) replace(t models.Transaction) {
	for i := range s.history {
		if s.history[i].ID == t.ID {
			s.history[i] = t
			return
		}
	}
	s.history = append([]models.Transaction{t}, s.history...)
}
