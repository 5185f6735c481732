// internal/api/handler/wallet.go
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"ledgerflow/internal/api/types"
	"ledgerflow/internal/domain"
	"ledgerflow/internal/service"
)

// DefaultTimeout bounds every request handled by the router.
const DefaultTimeout = 30 * time.Second

// WalletHandler handles HTTP requests for the ledger.
type WalletHandler struct {
	service      *service.LedgerService
	logger       *slog.Logger
	validate     *validator.Validate
	defaultScale int32 // assigned to wallets created without an explicit scale
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(svc *service.LedgerService, logger *slog.Logger, defaultScale int32) *WalletHandler {
	return &WalletHandler{
		service:      svc,
		logger:       logger,
		validate:     validator.New(),
		defaultScale: defaultScale,
	}
}

func (h *WalletHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError maps the domain error taxonomy to HTTP status codes.
func (h *WalletHandler) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	var (
		validationErr  *domain.ValidationError
		amountErr      *domain.AmountError
		walletTypeErr  *domain.WalletTypeError
		walletErr      *domain.WalletError
		transactionErr *domain.TransactionError
		isolationErr   *domain.IsolationConflictError
	)
	switch {
	case errors.As(err, &validationErr):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case errors.As(err, &amountErr):
		statusCode = http.StatusUnprocessableEntity
		message = err.Error()
	case errors.As(err, &walletTypeErr):
		statusCode = http.StatusNotFound
		message = err.Error()
	case errors.As(err, &walletErr):
		statusCode = http.StatusNotFound
		message = err.Error()
	case errors.As(err, &transactionErr):
		statusCode = http.StatusConflict
		message = err.Error()
	case errors.As(err, &isolationErr):
		statusCode = http.StatusConflict
		message = err.Error()
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, map[string]string{"error": message})
}

func (h *WalletHandler) walletID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "walletID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Msg: "wallet is required"}
	}
	return id, nil
}

func (h *WalletHandler) decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &domain.ValidationError{Msg: "invalid request body"}
	}
	if err := h.validate.Struct(dst); err != nil {
		return &domain.ValidationError{Msg: err.Error()}
	}
	return nil
}

// CreateWalletRequest represents the request body for wallet creation.
type CreateWalletRequest struct {
	WalletTypeID   int64           `json:"wallet_type_id" validate:"required,gt=0"`
	UserID         int64           `json:"user_id" validate:"required,gt=0"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Price          decimal.Decimal `json:"price"`
	MinValue       decimal.Decimal `json:"min_value"`
	Scale          *int32          `json:"scale" validate:"omitempty,gte=0,lte=18"`
	Extra          string          `json:"extra"`
}

// CreateWallet handles POST /wallets.
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req CreateWalletRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	scale := h.defaultScale
	if req.Scale != nil {
		scale = *req.Scale
	}
	wallet, transaction, err := h.service.CreateWallet(r.Context(), &service.CreateWalletRequest{
		WalletTypeID:   req.WalletTypeID,
		UserID:         req.UserID,
		OpeningBalance: req.OpeningBalance,
		Price:          req.Price,
		MinValue:       req.MinValue,
		Scale:          scale,
		Extra:          req.Extra,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"wallet":              wallet,
		"opening_transaction": transaction,
	})
}

// OperationRequest represents the request body for deposits, withdrawals and
// reservations.
type OperationRequest struct {
	Amount          decimal.Decimal   `json:"amount" validate:"required"`
	Description     string            `json:"description"`
	Code            string            `json:"code"`
	ReferenceID     string            `json:"reference_id"`
	ReferenceSource string            `json:"reference_source"`
	Properties      map[string]string `json:"properties"`
	CapAtZero       bool              `json:"cap_at_zero"`
}

func (h *WalletHandler) toServiceRequest(walletID int64, req *OperationRequest) *service.OperationRequest {
	return &service.OperationRequest{
		WalletID:        walletID,
		Amount:          req.Amount,
		Description:     req.Description,
		Code:            req.Code,
		ReferenceID:     req.ReferenceID,
		ReferenceSource: req.ReferenceSource,
		Properties:      req.Properties,
		CapAtZero:       req.CapAtZero,
	}
}

func (h *WalletHandler) runOperation(w http.ResponseWriter, r *http.Request,
	op func(r *http.Request, walletID int64, req *OperationRequest) (*domain.Transaction, error)) {
	walletID, err := h.walletID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	var req OperationRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	transaction, err := op(r, walletID, &req)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, transaction)
}

// Deposit handles POST /wallets/{walletID}/deposit.
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, func(r *http.Request, walletID int64, req *OperationRequest) (*domain.Transaction, error) {
		return h.service.AddFunds(r.Context(), h.toServiceRequest(walletID, req))
	})
}

// Withdraw handles POST /wallets/{walletID}/withdraw.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, func(r *http.Request, walletID int64, req *OperationRequest) (*domain.Transaction, error) {
		return h.service.WithdrawFunds(r.Context(), h.toServiceRequest(walletID, req))
	})
}

// ReserveWithdraw handles POST /wallets/{walletID}/reserve-withdraw.
func (h *WalletHandler) ReserveWithdraw(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, func(r *http.Request, walletID int64, req *OperationRequest) (*domain.Transaction, error) {
		return h.service.ReserveFundsForWithdraw(r.Context(), h.toServiceRequest(walletID, req))
	})
}

// ReserveDeposit handles POST /wallets/{walletID}/reserve-deposit.
func (h *WalletHandler) ReserveDeposit(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, func(r *http.Request, walletID int64, req *OperationRequest) (*domain.Transaction, error) {
		return h.service.ReserveFundsForDeposit(r.Context(), h.toServiceRequest(walletID, req))
	})
}

func (h *WalletHandler) reservationID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "reservationID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Msg: "reservation id is required"}
	}
	return id, nil
}

// AcceptReservation handles POST /reservations/{reservationID}/accept.
func (h *WalletHandler) AcceptReservation(w http.ResponseWriter, r *http.Request) {
	id, err := h.reservationID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	transaction, err := h.service.AcceptFundsByID(r.Context(), id)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, transaction)
}

// RejectReservation handles POST /reservations/{reservationID}/reject.
func (h *WalletHandler) RejectReservation(w http.ResponseWriter, r *http.Request) {
	id, err := h.reservationID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	transaction, err := h.service.RejectFundsByID(r.Context(), id)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, transaction)
}

// AcceptPartialRequest represents the request body for a partial settlement.
type AcceptPartialRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Description string          `json:"description"`
	Code        string          `json:"code"`
}

// AcceptPartial handles POST /reservations/{reservationID}/accept-partial.
func (h *WalletHandler) AcceptPartial(w http.ResponseWriter, r *http.Request) {
	id, err := h.reservationID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	var req AcceptPartialRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	transaction, err := h.service.AcceptPartialFundsByID(r.Context(), id, req.Amount, &service.OperationRequest{
		Description: req.Description,
		Code:        req.Code,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, transaction)
}

// OverrideBalanceRequest represents the request body for a balance override.
type OverrideBalanceRequest struct {
	Balance     decimal.Decimal `json:"balance"`
	Price       decimal.Decimal `json:"price"`
	MinValue    decimal.Decimal `json:"min_value"`
	Description string          `json:"description"`
}

// OverrideBalance handles POST /wallets/{walletID}/override.
func (h *WalletHandler) OverrideBalance(w http.ResponseWriter, r *http.Request) {
	walletID, err := h.walletID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	var req OverrideBalanceRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	transaction, err := h.service.OverrideBalance(r.Context(), walletID, req.Balance, req.Price, req.MinValue, req.Description)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, transaction)
}

// CloseWallet handles POST /wallets/{walletID}/close.
func (h *WalletHandler) CloseWallet(w http.ResponseWriter, r *http.Request) {
	walletID, err := h.walletID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	transaction, err := h.service.CloseWallet(r.Context(), walletID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, transaction)
}

// TransferRequest represents the request body for a transfer.
type TransferRequest struct {
	SourceWalletID int64           `json:"source_wallet_id" validate:"required,gt=0"`
	TargetWalletID int64           `json:"target_wallet_id" validate:"required,gt=0"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
}

// Transfer handles POST /transfers.
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	withdrawal, deposit, err := h.service.TransferFunds(r.Context(), req.SourceWalletID, req.TargetWalletID, req.Amount)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"withdrawal": withdrawal,
		"deposit":    deposit,
	})
}

// GetWalletBalance handles GET /wallets/{walletID}/balance.
func (h *WalletHandler) GetWalletBalance(w http.ResponseWriter, r *http.Request) {
	walletID, err := h.walletID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	wallet, err := h.service.GetWalletByID(r.Context(), walletID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, wallet)
}

// GetTransactionHistory handles GET /wallets/{walletID}/transactions.
func (h *WalletHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	walletID, err := h.walletID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	limit := 20
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	transactions, totalCount, err := h.service.GetTransactionsByWallet(r.Context(), walletID, limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.Transaction]{
		Data:       transactions,
		Limit:      limit,
		Offset:     offset,
		TotalCount: totalCount,
	})
}

// GetTransactionByUUID handles GET /transactions/{transactionUUID}. Lets a
// caller that generated an operation check whether it was recorded.
func (h *WalletHandler) GetTransactionByUUID(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "transactionUUID")
	if uuid == "" {
		h.respondWithError(w, &domain.ValidationError{Msg: "transaction uuid is required"})
		return
	}
	transaction, err := h.service.GetTransactionByUUID(r.Context(), uuid)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if transaction == nil {
		h.respondWithJSON(w, http.StatusNotFound, map[string]string{"error": "transaction not found"})
		return
	}
	h.respondWithJSON(w, http.StatusOK, transaction)
}

// GetReservedTransactions handles GET /wallets/{walletID}/reservations.
func (h *WalletHandler) GetReservedTransactions(w http.ResponseWriter, r *http.Request) {
	walletID, err := h.walletID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	transactions, err := h.service.GetReservedTransactions(r.Context(), walletID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, transactions)
}
