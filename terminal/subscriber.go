package terminal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alovak/terminal-playground/internal/notify"
	"golang.org/x/exp/slog"
)

const DefaultReconnectDelay = 3 * time.Second

// Subscriber consumes the gateway event stream, hands every notification to
// a handler and acknowledges it.
type Subscriber struct {
	client         *Client
	logger         *slog.Logger
	handle         func(notify.Notification)
	ReconnectDelay time.Duration
}

func NewSubscriber(client *Client, logger *slog.Logger, handle func(notify.Notification)) *Subscriber {
	return &Subscriber{
		client:         client,
		logger:         logger,
		handle:         handle,
		ReconnectDelay: DefaultReconnectDelay,
	}
}

// Run streams until ctx is done, reconnecting after a fixed delay whenever
// the stream ends.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("event stream disconnected", slog.Any("err", err), slog.Duration("retry_in", s.ReconnectDelay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.ReconnectDelay):
		}
	}
}

func (s *Subscriber) stream(ctx context.Context) error {
	body, err := s.client.openEvents(ctx)
	if err != nil {
		return err
	}
	defer body.Close()

	s.logger.Info("event stream connected")

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}

		n := notify.Notification{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &n); err != nil {
			s.logger.Warn("skipping malformed event", slog.Any("err", err))
			continue
		}

		s.logger.Debug("notification received", slog.String("mti", n.MTI), slog.String("description", n.Description))
		if s.handle != nil {
			s.handle(n)
		}
		if err := s.client.Ack(ctx, n.ID); err != nil {
			s.logger.Warn("acknowledging notification", slog.String("id", n.ID), slog.Any("err", err))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return fmt.Errorf("event stream closed")
}
