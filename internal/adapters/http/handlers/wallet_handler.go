package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Haleralex/walletcore/internal/adapters/http/common"
	"github.com/Haleralex/walletcore/internal/application/bus"
	"github.com/Haleralex/walletcore/internal/application/dtos"
)

// ============================================
// Wallet Handler
// ============================================

// WalletHandler exposes the wallet operations over HTTP. Every request is
// turned into a command or query and dispatched through the bus, so the
// retry and degradation decorators wired at startup apply uniformly.
type WalletHandler struct {
	bus *bus.Bus
}

// NewWalletHandler creates the handler.
func NewWalletHandler(b *bus.Bus) *WalletHandler {
	return &WalletHandler{bus: b}
}

// ============================================
// Request Bodies
// ============================================

// Mutation bodies deliberately omit the wallet id: it comes from the URL
// path and overwrites whatever the body carried.

// CreateWalletRequest is the body of POST /wallets.
type CreateWalletRequest struct {
	UserID string `json:"user_id"`
}

// OperationRequest is the shared body of deposit and withdraw.
type OperationRequest struct {
	Amount      string `json:"amount"`
	ReferenceID string `json:"reference_id"`
}

// TransferRequest is the body of transfer. The source wallet is the path
// parameter.
type TransferRequest struct {
	DestinationWalletID string `json:"destination_wallet_id"`
	Amount              string `json:"amount"`
	ReferenceID         string `json:"reference_id"`
}

// ============================================
// HTTP Handlers
// ============================================

// CreateWallet opens a new wallet and returns it with status 201.
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	var req CreateWalletRequest
	if !BindJSON(c, &req) {
		return
	}

	cmd := dtos.CreateWalletCommand{UserID: req.UserID}
	if !ValidateRequest(c, cmd) {
		return
	}

	result, err := bus.Execute[*dtos.WalletDTO](c.Request.Context(), h.bus, cmd)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusCreated, result)
}

// GetWallet returns the current state of a wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	query := dtos.GetWalletQuery{WalletID: c.Param("id")}
	if !ValidateRequest(c, query) {
		return
	}

	result, err := bus.ExecuteQuery[*dtos.WalletDTO](c.Request.Context(), h.bus, query)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// HistoricalBalance reconstructs the wallet's balance as of the timestamp
// query parameter (RFC 3339).
func (h *WalletHandler) HistoricalBalance(c *gin.Context) {
	raw := c.Query("timestamp")
	if raw == "" {
		common.ValidationErrorResponse(c, []common.FieldError{
			{Field: "timestamp", Message: "This field is required", Code: "required"},
		})
		return
	}

	timestamp, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		common.ValidationErrorResponse(c, []common.FieldError{
			{Field: "timestamp", Message: "Invalid timestamp format (use RFC 3339, like '2024-01-02T15:04:05Z')", Code: "timestamp"},
		})
		return
	}

	query := dtos.HistoricalBalanceQuery{
		WalletID:  c.Param("id"),
		Timestamp: timestamp,
	}
	if !ValidateRequest(c, query) {
		return
	}

	result, err := bus.ExecuteQuery[*dtos.HistoricalBalanceDTO](c.Request.Context(), h.bus, query)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// Deposit credits the wallet in the path.
func (h *WalletHandler) Deposit(c *gin.Context) {
	var req OperationRequest
	if !BindJSON(c, &req) {
		return
	}

	cmd := dtos.DepositCommand{
		WalletID:    c.Param("id"),
		Amount:      req.Amount,
		ReferenceID: req.ReferenceID,
	}
	if !ValidateRequest(c, cmd) {
		return
	}

	result, err := bus.Execute[*dtos.OperationResultDTO](c.Request.Context(), h.bus, cmd)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// Withdraw debits the wallet in the path.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	var req OperationRequest
	if !BindJSON(c, &req) {
		return
	}

	cmd := dtos.WithdrawCommand{
		WalletID:    c.Param("id"),
		Amount:      req.Amount,
		ReferenceID: req.ReferenceID,
	}
	if !ValidateRequest(c, cmd) {
		return
	}

	result, err := bus.Execute[*dtos.OperationResultDTO](c.Request.Context(), h.bus, cmd)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// Transfer moves funds from the wallet in the path to the destination in
// the body.
func (h *WalletHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if !BindJSON(c, &req) {
		return
	}

	cmd := dtos.TransferCommand{
		SourceWalletID:      c.Param("id"),
		DestinationWalletID: req.DestinationWalletID,
		Amount:              req.Amount,
		ReferenceID:         req.ReferenceID,
	}
	if !ValidateRequest(c, cmd) {
		return
	}

	result, err := bus.Execute[*dtos.TransferResultDTO](c.Request.Context(), h.bus, cmd)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// RegisterRoutes mounts the wallet routes on the API group.
//
// Routes:
//   - POST /wallets               - Create wallet
//   - GET  /wallets/:id           - Get wallet by ID
//   - GET  /wallets/:id/balance   - Balance as of ?timestamp=RFC3339
//   - POST /wallets/:id/deposit   - Deposit funds
//   - POST /wallets/:id/withdraw  - Withdraw funds
//   - POST /wallets/:id/transfer  - Transfer to another wallet
func (h *WalletHandler) RegisterRoutes(router *gin.RouterGroup) {
	wallets := router.Group("/wallets")
	{
		wallets.POST("", h.CreateWallet)
		wallets.GET("/:id", h.GetWallet)
		wallets.GET("/:id/balance", h.HistoricalBalance)
		wallets.POST("/:id/deposit", h.Deposit)
		wallets.POST("/:id/withdraw", h.Withdraw)
		wallets.POST("/:id/transfer", h.Transfer)
	}
}
