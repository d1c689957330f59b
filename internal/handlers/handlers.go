package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"papertrade/internal/auth"
	"papertrade/internal/models"
	"papertrade/internal/quote"
	"papertrade/internal/trading"
)

type Handler struct {
	engine *trading.Engine
	authn  *auth.Service
	quotes quote.Provider
	log    *logrus.Logger
}

func NewHandler(engine *trading.Engine, authn *auth.Service, quotes quote.Provider, log *logrus.Logger) *Handler {
	return &Handler{engine: engine, authn: authn, quotes: quotes, log: log}
}

// Register wires all routes onto the router, with the trading and account
// routes behind the auth middleware.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.POST("/register", h.RegisterUser)
	r.POST("/login", h.Login)

	authed := r.Group("/", h.authn.Middleware())
	authed.GET("/quote/:symbol", h.GetQuote)
	authed.POST("/buy", h.Buy)
	authed.POST("/sell", h.Sell)
	authed.POST("/deposit", h.Deposit)
	authed.POST("/password", h.ChangePassword)
	authed.GET("/portfolio", h.GetPortfolio)
	authed.GET("/history", h.GetHistory)
}

type RegisterRequest struct {
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
	Confirmation string `json:"confirmation" binding:"required"`
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid register body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, token, err := h.authn.Register(c.Request.Context(), req.Username, req.Password, req.Confirmation)
	if err != nil {
		h.fail(c, "register", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user_id": id, "token": token})
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.authn.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) GetQuote(c *gin.Context) {
	q, err := h.quotes.Lookup(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		h.fail(c, "quote", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": q.Symbol, "name": q.Name, "price": q.Price.StringFixed(4)})
}

type OrderRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Shares int64  `json:"shares" binding:"required,min=1"`
}

func (h *Handler) Buy(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid buy body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	trade, err := h.engine.ExecuteBuy(c.Request.Context(), h.userID(c), req.Symbol, req.Shares)
	if err != nil {
		h.fail(c, "buy", err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (h *Handler) Sell(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid sell body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	trade, err := h.engine.ExecuteSell(c.Request.Context(), h.userID(c), req.Symbol, req.Shares)
	if err != nil {
		h.fail(c, "sell", err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

type DepositRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount format"})
		return
	}

	if err := h.engine.DepositCash(c.Request.Context(), h.userID(c), amount); err != nil {
		h.fail(c, "deposit", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deposited", "amount": amount.StringFixed(4)})
}

type ChangePasswordRequest struct {
	Password     string `json:"password" binding:"required"`
	Confirmation string `json:"confirmation" binding:"required"`
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authn.ChangePassword(c.Request.Context(), h.userID(c), req.Password, req.Confirmation); err != nil {
		h.fail(c, "change password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password changed"})
}

func (h *Handler) GetPortfolio(c *gin.Context) {
	view, err := h.engine.Portfolio(c.Request.Context(), h.userID(c))
	if err != nil {
		h.fail(c, "portfolio", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) GetHistory(c *gin.Context) {
	rows, err := h.engine.History(c.Request.Context(), h.userID(c))
	if err != nil {
		h.fail(c, "history", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) userID(c *gin.Context) int64 {
	return c.MustGet(auth.ContextUserKey).(int64)
}

// fail maps domain errors to status codes. Storage failures stay generic:
// details go to the log, not the response.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnknownSymbol), errors.Is(err, models.ErrNoSuchHolding), errors.Is(err, models.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInsufficientFunds), errors.Is(err, models.ErrInsufficientShares):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrBadCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		h.log.Errorf("%s failed: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
