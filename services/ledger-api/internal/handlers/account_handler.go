package handlers

import (
	"context"
	"net/http"

	"github.com/banksys/balance-ledger/pkg"
	"github.com/banksys/balance-ledger/pkg/money"
	"github.com/banksys/balance-ledger/pkg/utils"
	"github.com/banksys/balance-ledger/services/ledger-api/internal/services"
	"github.com/banksys/balance-ledger/services/ledger-api/internal/views"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mutationOp func(ctx context.Context, traceID string, accountID uuid.UUID, amount string) (views.MutationResult, error)

// AccountHandler exposes the ledger core over HTTP. The upstream collaborator
// is expected to authenticate; routes take the account id directly.
type AccountHandler struct {
	logger       *zap.Logger
	accounts     services.AccountService
	transactions services.TransactionService
	limiter      *pkg.DistributedLimiter
}

func NewAccountHandler(logger *zap.Logger, accounts services.AccountService, transactions services.TransactionService, limiter *pkg.DistributedLimiter) *AccountHandler {
	return &AccountHandler{logger: logger, accounts: accounts, transactions: transactions, limiter: limiter}
}

// RegisterRoutes registers account routes on the provided Gin group.
func (h *AccountHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/accounts", h.Register)
	r.GET("/accounts/:id/balance", h.GetBalance)
	r.POST("/accounts/:id/deposit", h.Deposit)
	r.POST("/accounts/:id/withdraw", h.Withdraw)
	r.GET("/accounts/:id/transactions", h.GetHistory)
}

func (h *AccountHandler) Register(c *gin.Context) {
	traceID, err := utils.GetTraceID(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, pkg.ErrorResponse{Code: pkg.ErrServerCode.Code, Message: err.Error()})
		return
	}

	accountID, err := h.accounts.Register(c.Request.Context(), traceID)
	if err != nil {
		resp := pkg.ToErrorResponse(h.logger, traceID, err)
		c.JSON(resp.Status, resp)
		return
	}

	c.JSON(http.StatusCreated, pkg.APIResponse{
		TraceID: traceID,
		Data: map[string]interface{}{
			"accountId": accountID.String(),
		},
	})
}

func (h *AccountHandler) GetBalance(c *gin.Context) {
	traceID, accountID, ok := h.requestContext(c)
	if !ok {
		return
	}

	balance, err := h.accounts.GetBalance(c.Request.Context(), traceID, accountID)
	if err != nil {
		resp := pkg.ToErrorResponse(h.logger, traceID, err)
		c.JSON(resp.Status, resp)
		return
	}

	c.JSON(http.StatusOK, pkg.APIResponse{
		TraceID: traceID,
		Data: map[string]interface{}{
			"accountId": accountID.String(),
			"balance":   money.FormatMinorUnits(balance),
		},
	})
}

func (h *AccountHandler) Deposit(c *gin.Context) {
	h.mutate(c, h.transactions.Deposit)
}

func (h *AccountHandler) Withdraw(c *gin.Context) {
	h.mutate(c, h.transactions.Withdraw)
}

func (h *AccountHandler) mutate(c *gin.Context, op mutationOp) {
	traceID, accountID, ok := h.requestContext(c)
	if !ok {
		return
	}

	if !h.limiter.Allow(c.Request.Context()) {
		c.JSON(http.StatusTooManyRequests, pkg.ErrorResponse{
			Code:    pkg.ErrTooManyRequests.Code,
			Message: pkg.ErrTooManyRequests.Message,
		})
		return
	}

	var req views.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, pkg.ErrorResponse{
			Code:    pkg.ErrInvalidInputCode.Code,
			Message: "invalid request body",
			Details: err.Error(),
		})
		return
	}

	result, err := op(c.Request.Context(), traceID, accountID, req.Amount)
	if err != nil {
		resp := pkg.ToErrorResponse(h.logger, traceID, err)
		c.JSON(resp.Status, resp)
		return
	}

	c.JSON(http.StatusOK, pkg.APIResponse{
		TraceID: traceID,
		Data: map[string]interface{}{
			"accountId": result.AccountID,
			"balance":   result.Balance,
			"opId":      result.OpID,
		},
	})
}

func (h *AccountHandler) GetHistory(c *gin.Context) {
	traceID, accountID, ok := h.requestContext(c)
	if !ok {
		return
	}

	startDate := c.Query("startDate")
	endDate := c.Query("endDate")
	if utils.IsEmpty(startDate) || utils.IsEmpty(endDate) {
		c.JSON(http.StatusBadRequest, pkg.ErrorResponse{
			Code:    pkg.ErrInvalidInputCode.Code,
			Message: "startDate and endDate are required",
		})
		return
	}

	transactions, err := h.transactions.History(c.Request.Context(), traceID, accountID, startDate, endDate)
	if err != nil {
		resp := pkg.ToErrorResponse(h.logger, traceID, err)
		c.JSON(resp.Status, resp)
		return
	}

	c.JSON(http.StatusOK, pkg.APIResponse{
		TraceID: traceID,
		Data: map[string]interface{}{
			"transactions": transactions,
		},
	})
}

// requestContext extracts the trace id and path account id, writing the
// error response itself when either is missing or malformed.
func (h *AccountHandler) requestContext(c *gin.Context) (string, uuid.UUID, bool) {
	traceID, err := utils.GetTraceID(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, pkg.ErrorResponse{Code: pkg.ErrServerCode.Code, Message: err.Error()})
		return "", uuid.Nil, false
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, pkg.ErrorResponse{
			Code:    pkg.ErrInvalidInputCode.Code,
			Message: "invalid account id",
		})
		return "", uuid.Nil, false
	}
	return traceID, accountID, true
}
