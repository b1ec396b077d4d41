package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alovak/terminal-playground/gateway/models"
	"github.com/alovak/terminal-playground/internal/mti"
	"github.com/alovak/terminal-playground/internal/notify"
	"github.com/alovak/terminal-playground/internal/pan"
	"github.com/alovak/terminal-playground/internal/protocol"
	"github.com/alovak/terminal-playground/internal/validation"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

var ErrMalformedRequest = fmt.Errorf("malformed request")

// Publisher delivers notifications to connected terminals.
type Publisher interface {
	Publish(ctx context.Context, n notify.Notification) notify.Notification
}

type Service struct {
	repo    *Repository
	cfg     *Config
	opts    validation.Options
	decider Decider
	pub     Publisher
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
	stan    atomic.Uint32
}

type Option func(*Service)

func WithDecider(d Decider) Option { return func(s *Service) { s.decider = d } }

func WithPublisher(p Publisher) Option { return func(s *Service) { s.pub = p } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithIDGenerator(f func() string) Option { return func(s *Service) { s.newID = f } }

func NewService(repo *Repository, cfg *Config, options ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	opts, _ := cfg.ValidationOptions()

	s := &Service{
		repo:   repo,
		cfg:    cfg,
		opts:   opts,
		logger: slog.Default(),
		now:    time.Now,
		newID:  newTransactionID,
	}
	for _, o := range options {
		o(s)
	}
	if s.decider == nil {
		d, _ := NewDecider(cfg.ApprovalPolicy, cfg.ApprovalRate, time.Now().UnixNano())
		s.decider = d
	}
	s.opts.Now = s.now
	return s, nil
}

// newTransactionID returns a time-ordered identifier; UUIDv7 keeps ids
// distinct even for payments created within the same millisecond.
func newTransactionID() string {
	return "txn_" + uuid.Must(uuid.NewV7()).String()
}

// CreatePayment validates the request, fabricates an outcome and stores the
// resulting transaction.
func (s *Service) CreatePayment(ctx context.Context, req models.PaymentRequest) (*models.Transaction, error) {
	if err := validation.Validate(req.Fields(), s.opts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if !s.cfg.supportsCurrency(currency) {
		return nil, fmt.Errorf("%w: unsupported currency %q", ErrMalformedRequest, req.Currency)
	}
	txType := strings.ToUpper(strings.TrimSpace(req.TransactionType))
	if txType == "" {
		txType = models.DefaultTransactionType
	}

	stan := s.stan.Add(1)
	s.notify(ctx, mti.Frame{
		MTI:            mti.AuthorizationRequest,
		ProcessingCode: mti.ProcessingPurchase,
		Amount:         req.Amount,
		Currency:       currency,
		STAN:           stan,
	}, "")

	transaction := &models.Transaction{
		ID:              s.newID(),
		Amount:          req.Amount,
		Currency:        currency,
		Timestamp:       s.now().UTC(),
		TransactionType: txType,
		Protocol:        req.Protocol,
		CardLast4:       pan.LastN(pan.Normalize(req.CardNumber), 4),
	}

	switch status := s.decider.Decide(req); status {
	case models.TransactionStatusApproved:
		transaction.Status = status
		transaction.ApprovalCode = req.AuthCode
		transaction.ResponseCode = models.ResponseCodeApproved
		transaction.ResponseMessage = "Transaction approved"
	default:
		transaction.Status = models.TransactionStatusDeclined
		transaction.ApprovalCode = models.ApprovalCodeNone
		transaction.ResponseCode = models.ResponseCodeDeclined
		transaction.ResponseMessage = "Transaction declined"
	}

	if err := s.repo.CreateTransaction(transaction); err != nil {
		return nil, fmt.Errorf("creating transaction: %w", err)
	}

	frame := mti.Frame{
		MTI:            mti.AuthorizationResponse,
		ProcessingCode: mti.ProcessingPurchase,
		Amount:         transaction.Amount,
		Currency:       currency,
		STAN:           stan,
		ResponseCode:   transaction.ResponseCode,
	}
	if transaction.Status == models.TransactionStatusApproved {
		frame.ApprovalCode = transaction.ApprovalCode
	}
	s.notify(ctx, frame, transaction.ID)

	s.logger.Info("payment processed",
		slog.String("transaction_id", transaction.ID),
		slog.String("status", string(transaction.Status)),
		slog.String("amount", transaction.Amount.String()),
		slog.String("currency", currency),
		slog.String("card", pan.Mask(req.CardNumber)),
		slog.String("protocol", req.Protocol),
	)

	return transaction, nil
}

// ListTransactions returns all transactions, most recent first.
func (s *Service) ListTransactions() []models.Transaction {
	return s.repo.ListTransactions()
}

func (s *Service) GetTransaction(id string) (*models.Transaction, error) {
	t, err := s.repo.GetTransaction(id)
	if err != nil {
		return nil, fmt.Errorf("finding transaction %s: %w", id, err)
	}
	return t, nil
}

// VoidTransaction moves an APPROVED transaction to VOIDED. A missing
// transaction is reported as ErrInvalidState, like any other non voidable one.
func (s *Service) VoidTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	stan := s.stan.Add(1)

	updated, err := s.repo.UpdateStatus(id, models.TransactionStatusVoided)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("voiding transaction %s: %w: %w", id, ErrInvalidState, err)
		}
		return nil, fmt.Errorf("voiding transaction %s: %w", id, err)
	}

	frame := mti.Frame{
		MTI:            mti.ReversalAdvice,
		ProcessingCode: mti.ProcessingVoid,
		Amount:         updated.Amount,
		Currency:       updated.Currency,
		STAN:           stan,
		ApprovalCode:   updated.ApprovalCode,
	}
	s.notify(ctx, frame, updated.ID)
	frame.MTI = mti.ReversalAdviceResponse
	frame.ResponseCode = models.ResponseCodeApproved
	s.notify(ctx, frame, updated.ID)

	s.logger.Info("transaction voided", slog.String("transaction_id", updated.ID))
	return updated, nil
}

func (s *Service) TerminalInfo() models.TerminalInfo {
	return models.TerminalInfo{MerchantID: s.cfg.MerchantID, TerminalID: s.cfg.TerminalID}
}

func (s *Service) Protocols() []protocol.Descriptor {
	return protocol.All()
}

// SavePayoutSettings stores an opaque settings object and acknowledges it
// with an advice/advice response pair on the event stream.
func (s *Service) SavePayoutSettings(ctx context.Context, settings map[string]any) models.PayoutSettings {
	saved := s.repo.SavePayoutSettings(settings, s.now().UTC())

	stan := s.stan.Add(1)
	s.notify(ctx, mti.Frame{MTI: mti.AdviceRequest, ProcessingCode: mti.ProcessingPayout, STAN: stan}, "")
	s.notify(ctx, mti.Frame{MTI: mti.AdviceResponse, ProcessingCode: mti.ProcessingPayout, STAN: stan, ResponseCode: models.ResponseCodeApproved}, "")

	s.logger.Info("payout settings saved", slog.Int("keys", len(settings)))
	return saved
}

func (s *Service) PayoutSettings() (*models.PayoutSettings, error) {
	return s.repo.GetPayoutSettings()
}

// Heartbeat emits a simulated network management echo pair.
func (s *Service) Heartbeat(ctx context.Context) {
	stan := s.stan.Add(1)
	s.notify(ctx, mti.Frame{MTI: mti.NetworkManagementRequest, ProcessingCode: mti.ProcessingEcho, STAN: stan}, "")
	s.notify(ctx, mti.Frame{MTI: mti.NetworkManagementResponse, ProcessingCode: mti.ProcessingEcho, STAN: stan, ResponseCode: models.ResponseCodeApproved}, "")
}

func (s *Service) notify(ctx context.Context, f mti.Frame, transactionID string) {
	if s.pub == nil {
		return
	}
	f.TerminalID = s.cfg.TerminalID
	f.MerchantID = s.cfg.MerchantID
	f.Time = s.now()

	n := notify.Notification{
		MTI:           f.MTI,
		Description:   mti.Describe(f.MTI),
		TransactionID: transactionID,
		Timestamp:     f.Time.UTC(),
	}
	packed, err := mti.Pack(f)
	if err != nil {
		s.logger.Warn("rendering iso8583 frame", slog.String("mti", f.MTI), slog.Any("err", err))
	} else {
		n.Frame = string(packed)
	}
	s.pub.Publish(ctx, n)
}
