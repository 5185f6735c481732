// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ledgerflow/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(walletHandler *handler.WalletHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/wallets", func(r chi.Router) {
		r.Post("/", walletHandler.CreateWallet)
		r.Post("/{walletID}/deposit", walletHandler.Deposit)
		r.Post("/{walletID}/withdraw", walletHandler.Withdraw)
		r.Post("/{walletID}/reserve-withdraw", walletHandler.ReserveWithdraw)
		r.Post("/{walletID}/reserve-deposit", walletHandler.ReserveDeposit)
		r.Post("/{walletID}/override", walletHandler.OverrideBalance)
		r.Post("/{walletID}/close", walletHandler.CloseWallet)
		r.Get("/{walletID}/balance", walletHandler.GetWalletBalance)
		r.Get("/{walletID}/transactions", walletHandler.GetTransactionHistory)
		r.Get("/{walletID}/reservations", walletHandler.GetReservedTransactions)
	})

	r.Route("/reservations", func(r chi.Router) {
		r.Post("/{reservationID}/accept", walletHandler.AcceptReservation)
		r.Post("/{reservationID}/accept-partial", walletHandler.AcceptPartial)
		r.Post("/{reservationID}/reject", walletHandler.RejectReservation)
	})

	r.Get("/transactions/{transactionUUID}", walletHandler.GetTransactionByUUID)

	r.Post("/transfers", walletHandler.Transfer)

	return r
}
