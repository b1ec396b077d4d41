package terminal_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alovak/terminal-playground/gateway"
	"github.com/alovak/terminal-playground/gateway/models"
	"github.com/alovak/terminal-playground/internal/notify"
	"github.com/alovak/terminal-playground/internal/validation"
	"github.com/alovak/terminal-playground/terminal"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validPayment() models.PaymentRequest {
	return models.PaymentRequest{
		Amount:         decimal.RequireFromString("100.00"),
		Currency:       "USD",
		CardNumber:     "4111111111111111",
		ExpiryDate:     "12/30",
		CVV:            "123",
		CardholderName: "Jane Doe",
		Protocol:       "POS Terminal -101.1 (4-digit approval)",
		AuthCode:       "1234",
	}
}

type testGateway struct {
	router   chi.Router
	hub      *notify.Hub
	payments atomic.Int32
}

func newTestGateway(t *testing.T, decider gateway.Decider) *testGateway {
	t.Helper()

	hub := notify.NewHub(testLogger())
	t.Cleanup(hub.Close)

	svc, err := gateway.NewService(gateway.NewRepository(), gateway.DefaultConfig(),
		gateway.WithDecider(decider),
		gateway.WithPublisher(hub),
		gateway.WithLogger(testLogger()),
	)
	require.NoError(t, err)

	router := chi.NewRouter()
	gateway.NewAPI(svc, hub).AppendRoutes(router)
	return &testGateway{router: router, hub: hub}
}

func (g *testGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/payment" {
		g.payments.Add(1)
	}
	g.router.ServeHTTP(w, r)
}

func newSession(t *testing.T, handler http.Handler) (*terminal.Session, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := terminal.NewClient(server.URL, nil)
	return terminal.NewSession(client, validation.Options{}, testLogger()), server
}

func TestSession(t *testing.T) {
	gw := newTestGateway(t, gateway.ApproveAll)
	session, _ := newSession(t, gw)
	ctx := context.Background()

	require.False(t, session.Online())
	_, ok := session.LastTransaction()
	require.False(t, ok)

	t.Run("login", func(t *testing.T) {
		info, err := session.Login(ctx)
		require.NoError(t, err)
		require.Equal(t, "BR_MERCHANT_001", info.MerchantID)
		require.Equal(t, "BR_TERMINAL_001", info.TerminalID)
		require.True(t, session.Online())
	})

	var first *models.Transaction

	t.Run("submit", func(t *testing.T) {
		var err error
		first, err = session.Submit(ctx, validPayment())
		require.NoError(t, err)
		require.Equal(t, models.TransactionStatusApproved, first.Status)

		last, ok := session.LastTransaction()
		require.True(t, ok)
		require.Equal(t, first.ID, last.ID)
	})

	t.Run("validation errors stay local", func(t *testing.T) {
		before := gw.payments.Load()

		req := validPayment()
		req.AuthCode = "12"
		_, err := session.Submit(ctx, req)
		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		require.Equal(t, validation.CodeLength, verr.Code)

		req.AuthCode = "abcd"
		_, err = session.Submit(ctx, req)
		require.ErrorAs(t, err, &verr)
		require.Equal(t, validation.CodeFormat, verr.Code)

		require.Equal(t, before, gw.payments.Load())
	})

	t.Run("void last", func(t *testing.T) {
		voided, err := session.VoidLast(ctx)
		require.NoError(t, err)
		require.Equal(t, models.TransactionStatusVoided, voided.Status)

		last, ok := session.LastTransaction()
		require.True(t, ok)
		require.Equal(t, models.TransactionStatusVoided, last.Status)

		_, err = session.VoidLast(ctx)
		require.ErrorIs(t, err, terminal.ErrInvalidState)
		require.True(t, session.Online())
	})

	t.Run("refresh mirrors the gateway", func(t *testing.T) {
		second, err := session.Submit(ctx, validPayment())
		require.NoError(t, err)

		require.NoError(t, session.Refresh(ctx))
		history := session.History()
		require.Len(t, history, 2)
		require.Equal(t, second.ID, history[0].ID)
		require.Equal(t, first.ID, history[1].ID)
	})
}

func TestSession_VoidLastWithoutTransaction(t *testing.T) {
	session, _ := newSession(t, newTestGateway(t, gateway.ApproveAll))

	_, err := session.VoidLast(context.Background())
	require.ErrorIs(t, err, terminal.ErrNoTransaction)
}

func TestSession_SupersededSubmission(t *testing.T) {
	gw := newTestGateway(t, gateway.ApproveAll)

	received := make(chan struct{})
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/payment" {
			body, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(strings.NewReader(string(body)))
			if strings.Contains(string(body), `"auth_code":"1111"`) {
				close(received)
				<-release
			}
		}
		gw.ServeHTTP(w, r)
	})
	session, _ := newSession(t, handler)
	ctx := context.Background()

	slow := validPayment()
	slow.AuthCode = "1111"

	done := make(chan error, 1)
	go func() {
		_, err := session.Submit(ctx, slow)
		done <- err
	}()
	<-received

	latest, err := session.Submit(ctx, validPayment())
	require.NoError(t, err)
	close(release)

	require.ErrorIs(t, <-done, terminal.ErrSuperseded)

	last, ok := session.LastTransaction()
	require.True(t, ok)
	require.Equal(t, latest.ID, last.ID)
	require.Len(t, session.History(), 1)
}

func TestSession_Offline(t *testing.T) {
	session, server := newSession(t, newTestGateway(t, gateway.ApproveAll))
	ctx := context.Background()

	_, err := session.Login(ctx)
	require.NoError(t, err)
	require.True(t, session.Online())

	server.Close()

	_, err = session.Submit(ctx, validPayment())
	require.ErrorIs(t, err, terminal.ErrNetwork)
	require.False(t, session.Online())

	// identity survives going offline
	info, err := session.Login(ctx)
	require.NoError(t, err)
	require.Equal(t, "BR_TERMINAL_001", info.TerminalID)
}

func TestSession_RunProbe(t *testing.T) {
	var up atomic.Bool
	up.Store(true)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up.Load() {
			// drop the connection to look like a network failure
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.Status{Status: "online"})
	})
	session, _ := newSession(t, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.RunProbe(ctx, 10*time.Millisecond)

	require.Eventually(t, session.Online, time.Second, 5*time.Millisecond)

	up.Store(false)
	require.Eventually(t, func() bool { return !session.Online() }, time.Second, 5*time.Millisecond)
}
