package trading

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"papertrade/internal/models"
	"papertrade/internal/quote"
)

// Store is the ledger the engine writes against. Implementations must apply
// each trade's writes atomically and reject overdrafts/oversells themselves;
// the engine's precondition checks are not a substitute for that.
type Store interface {
	ExecuteBuy(ctx context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) error
	ExecuteSell(ctx context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) error
	AddCash(ctx context.Context, userID int64, amount decimal.Decimal) error
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetHoldings(ctx context.Context, userID int64) ([]models.Holding, error)
	GetHistory(ctx context.Context, userID int64) ([]models.HistoryRecord, error)
}

type Engine struct {
	store  Store
	quotes quote.Provider
	log    *logrus.Logger
}

func NewEngine(store Store, quotes quote.Provider, log *logrus.Logger) *Engine {
	return &Engine{store: store, quotes: quotes, log: log}
}

// Trade is the receipt returned for an executed order.
type Trade struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Side   string          `json:"side"`
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

// Position is a holding enriched with a live quote.
type Position struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Value  decimal.Decimal `json:"value"`
}

// PortfolioView is the index projection: positions, cash and grand total.
type PortfolioView struct {
	Positions  []Position      `json:"positions"`
	Cash       decimal.Decimal `json:"cash"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

func (e *Engine) ExecuteBuy(ctx context.Context, userID int64, symbol string, shares int64) (Trade, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" || shares <= 0 {
		return Trade{}, models.ErrInvalidInput
	}

	q, err := e.quotes.Lookup(ctx, symbol)
	if err != nil {
		return Trade{}, err
	}

	cost := q.Price.Mul(decimal.NewFromInt(shares))
	if err := e.store.ExecuteBuy(ctx, userID, q.Symbol, shares, q.Price); err != nil {
		return Trade{}, err
	}

	e.log.Infof("user %d bought %d %s @ %s", userID, shares, q.Symbol, q.Price.StringFixed(4))
	return Trade{Symbol: q.Symbol, Name: q.Name, Side: models.SideBuy, Shares: shares, Price: q.Price, Amount: cost}, nil
}

func (e *Engine) ExecuteSell(ctx context.Context, userID int64, symbol string, shares int64) (Trade, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" || shares <= 0 {
		return Trade{}, models.ErrInvalidInput
	}

	q, err := e.quotes.Lookup(ctx, symbol)
	if err != nil {
		return Trade{}, err
	}

	proceeds := q.Price.Mul(decimal.NewFromInt(shares))
	if err := e.store.ExecuteSell(ctx, userID, q.Symbol, shares, q.Price); err != nil {
		return Trade{}, err
	}

	e.log.Infof("user %d sold %d %s @ %s", userID, shares, q.Symbol, q.Price.StringFixed(4))
	return Trade{Symbol: q.Symbol, Name: q.Name, Side: models.SideSell, Shares: shares, Price: q.Price, Amount: proceeds}, nil
}

func (e *Engine) DepositCash(ctx context.Context, userID int64, amount decimal.Decimal) error {
	if amount.Cmp(decimal.Zero) <= 0 {
		return models.ErrInvalidInput
	}
	return e.store.AddCash(ctx, userID, amount)
}

// Portfolio enriches each holding with a live quote. A holding whose symbol
// no longer resolves is skipped with a warning rather than failing the view.
func (e *Engine) Portfolio(ctx context.Context, userID int64) (PortfolioView, error) {
	u, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return PortfolioView{}, err
	}
	holdings, err := e.store.GetHoldings(ctx, userID)
	if err != nil {
		return PortfolioView{}, err
	}

	view := PortfolioView{Positions: []Position{}, Cash: u.Cash, GrandTotal: u.Cash}
	for _, h := range holdings {
		q, err := e.quotes.Lookup(ctx, h.Symbol)
		if err != nil {
			e.log.Warnf("no quote for held symbol %s: %v", h.Symbol, err)
			continue
		}
		value := q.Price.Mul(decimal.NewFromInt(h.Shares))
		view.Positions = append(view.Positions, Position{
			Symbol: h.Symbol,
			Name:   q.Name,
			Shares: h.Shares,
			Price:  q.Price,
			Value:  value,
		})
		view.GrandTotal = view.GrandTotal.Add(value)
	}
	return view, nil
}

func (e *Engine) History(ctx context.Context, userID int64) ([]models.HistoryRecord, error) {
	return e.store.GetHistory(ctx, userID)
}
