package gateway

import (
	"testing"
	"time"

	"github.com/alovak/terminal-playground/gateway/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRepository(t *testing.T) {
	repo := NewRepository()

	tx := &models.Transaction{
		ID:       "txn_1",
		Status:   models.TransactionStatusApproved,
		Amount:   decimal.RequireFromString("10.50"),
		Currency: "USD",
	}
	require.NoError(t, repo.CreateTransaction(tx))
	require.ErrorIs(t, repo.CreateTransaction(tx), ErrConflict)

	t.Run("returns copies", func(t *testing.T) {
		found, err := repo.GetTransaction("txn_1")
		require.NoError(t, err)
		found.Status = models.TransactionStatusDeclined

		again, err := repo.GetTransaction("txn_1")
		require.NoError(t, err)
		require.Equal(t, models.TransactionStatusApproved, again.Status)

		// the caller's record is not shared either
		tx.Currency = "EUR"
		require.Equal(t, "USD", repo.ListTransactions()[0].Currency)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetTransaction("txn_2")
		require.ErrorIs(t, err, ErrNotFound)

		_, err = repo.UpdateStatus("txn_2", models.TransactionStatusVoided)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("status machine", func(t *testing.T) {
		updated, err := repo.UpdateStatus("txn_1", models.TransactionStatusVoided)
		require.NoError(t, err)
		require.Equal(t, models.TransactionStatusVoided, updated.Status)

		_, err = repo.UpdateStatus("txn_1", models.TransactionStatusVoided)
		require.ErrorIs(t, err, ErrInvalidState)
		_, err = repo.UpdateStatus("txn_1", models.TransactionStatusApproved)
		require.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("most recent first", func(t *testing.T) {
		require.NoError(t, repo.CreateTransaction(&models.Transaction{ID: "txn_2", Status: models.TransactionStatusDeclined}))
		require.NoError(t, repo.CreateTransaction(&models.Transaction{ID: "txn_3", Status: models.TransactionStatusApproved}))

		list := repo.ListTransactions()
		require.Len(t, list, 3)
		require.Equal(t, []string{"txn_3", "txn_2", "txn_1"}, []string{list[0].ID, list[1].ID, list[2].ID})
	})

	t.Run("payout settings", func(t *testing.T) {
		_, err := repo.GetPayoutSettings()
		require.ErrorIs(t, err, ErrNotFound)

		at := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
		repo.SavePayoutSettings(map[string]any{"bank": "BR"}, at)

		found, err := repo.GetPayoutSettings()
		require.NoError(t, err)
		require.Equal(t, at, found.UpdatedAt)
		require.Equal(t, "BR", found.Settings["bank"])
	})
}

func TestTransactionStatus_CanTransitionTo(t *testing.T) {
	statuses := []models.TransactionStatus{
		models.TransactionStatusApproved,
		models.TransactionStatusDeclined,
		models.TransactionStatusVoided,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			want := from == models.TransactionStatusApproved && to == models.TransactionStatusVoided
			require.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}
