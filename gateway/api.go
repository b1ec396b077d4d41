package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/alovak/terminal-playground/gateway/models"
	"github.com/alovak/terminal-playground/internal/notify"
	"github.com/alovak/terminal-playground/internal/validation"
	"github.com/go-chi/chi/v5"
)

// API is a HTTP API for the terminal gateway
type API struct {
	gateway *Service
	hub     *notify.Hub
}

func NewAPI(gateway *Service, hub *notify.Hub) *API {
	return &API{
		gateway: gateway,
		hub:     hub,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/payment", a.createPayment)
		r.Get("/transactions", a.listTransactions)
		r.Route("/transaction/{transactionID}", func(r chi.Router) {
			r.Get("/", a.getTransaction)
			r.Post("/void", a.voidTransaction)
		})
		r.Get("/terminal/info", a.terminalInfo)
		r.Get("/protocols", a.protocols)
		r.Post("/payout/settings", a.savePayoutSettings)
		r.Get("/payout/settings", a.getPayoutSettings)
		r.Get("/status", a.status)
		r.Get("/events", a.streamEvents)
		r.Post("/events/{notificationID}/ack", a.ackEvent)
	})
}

func (a *API) createPayment(w http.ResponseWriter, r *http.Request) {
	req := models.PaymentRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	transaction, err := a.gateway.CreatePayment(r.Context(), req)
	if err != nil {
		var verr *validation.Error
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, ErrMalformedRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Payment processing failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, transaction)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.TransactionList{
		Transactions: a.gateway.ListTransactions(),
	})
}

func (a *API) getTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")

	transaction, err := a.gateway.GetTransaction(transactionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Transaction not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, transaction)
}

func (a *API) voidTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")

	transaction, err := a.gateway.VoidTransaction(r.Context(), transactionID)
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			writeError(w, http.StatusBadRequest, "Transaction cannot be voided")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, transaction)
}

func (a *API) terminalInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.gateway.TerminalInfo())
}

func (a *API) protocols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.ProtocolList{Protocols: a.gateway.Protocols()})
}

func (a *API) savePayoutSettings(w http.ResponseWriter, r *http.Request) {
	var settings map[string]any
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil || settings == nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	a.gateway.SavePayoutSettings(r.Context(), settings)
	writeJSON(w, http.StatusOK, models.Message{Message: "Payout settings saved successfully"})
}

func (a *API) getPayoutSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.gateway.PayoutSettings()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Payout settings not configured")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Status{Status: "online"})
}

// streamEvents delivers hub notifications as Server-Sent Events until the
// client goes away or the hub closes.
func (a *API) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	notifications, cancel, err := a.hub.Subscribe()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Event stream closed")
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, data)
			flusher.Flush()
		}
	}
}

func (a *API) ackEvent(w http.ResponseWriter, r *http.Request) {
	notificationID := chi.URLParam(r, "notificationID")

	if err := a.hub.Ack(notificationID); err != nil {
		writeError(w, http.StatusNotFound, "Notification not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
