package trading

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/models"
)

// memStore mimics the repo's contract: each trade's writes apply atomically
// and the balance/holding check happens inside the same critical section.
type memStore struct {
	mu       sync.Mutex
	cash     map[int64]decimal.Decimal
	holdings map[int64]map[string]int64
	history  map[int64][]models.HistoryRecord
}

func newMemStore() *memStore {
	return &memStore{
		cash:     map[int64]decimal.Decimal{},
		holdings: map[int64]map[string]int64{},
		history:  map[int64][]models.HistoryRecord{},
	}
}

func (s *memStore) ExecuteBuy(ctx context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cost := price.Mul(decimal.NewFromInt(shares))
	if s.cash[userID].Cmp(cost) < 0 {
		return models.ErrInsufficientFunds
	}
	s.cash[userID] = s.cash[userID].Sub(cost)
	if s.holdings[userID] == nil {
		s.holdings[userID] = map[string]int64{}
	}
	s.holdings[userID][symbol] += shares
	s.history[userID] = append(s.history[userID], models.HistoryRecord{
		Symbol: symbol, Side: models.SideBuy, Shares: shares, Price: price, Amount: cost, TransactedAt: time.Now(),
	})
	return nil
}

func (s *memStore) ExecuteSell(ctx context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned, ok := s.holdings[userID][symbol]
	if !ok {
		return models.ErrNoSuchHolding
	}
	if owned < shares {
		return models.ErrInsufficientShares
	}
	if owned == shares {
		delete(s.holdings[userID], symbol)
	} else {
		s.holdings[userID][symbol] = owned - shares
	}
	proceeds := price.Mul(decimal.NewFromInt(shares))
	s.cash[userID] = s.cash[userID].Add(proceeds)
	s.history[userID] = append(s.history[userID], models.HistoryRecord{
		Symbol: symbol, Side: models.SideSell, Shares: shares, Price: price, Amount: proceeds, TransactedAt: time.Now(),
	})
	return nil
}

func (s *memStore) AddCash(ctx context.Context, userID int64, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cash[userID] = s.cash[userID].Add(amount)
	return nil
}

func (s *memStore) GetUserByID(ctx context.Context, userID int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cash, ok := s.cash[userID]
	if !ok {
		return models.User{}, models.ErrUserNotFound
	}
	return models.User{ID: userID, Cash: cash}, nil
}

func (s *memStore) GetHoldings(ctx context.Context, userID int64) ([]models.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := []models.Holding{}
	for sym, n := range s.holdings[userID] {
		res = append(res, models.Holding{Symbol: sym, Shares: n})
	}
	return res, nil
}

func (s *memStore) GetHistory(ctx context.Context, userID int64) ([]models.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.HistoryRecord{}, s.history[userID]...), nil
}

type fakeQuotes struct {
	prices map[string]decimal.Decimal
}

func (f *fakeQuotes) Lookup(ctx context.Context, symbol string) (models.Quote, error) {
	p, ok := f.prices[symbol]
	if !ok {
		return models.Quote{}, models.ErrUnknownSymbol
	}
	return models.Quote{Symbol: symbol, Name: symbol + " Inc", Price: p}, nil
}

func newTestEngine(prices map[string]decimal.Decimal) (*Engine, *memStore) {
	store := newMemStore()
	logger := logrus.New()
	return NewEngine(store, &fakeQuotes{prices: prices}, logger), store
}

func TestExecuteBuy_UpdatesLedger(t *testing.T) {
	eng, store := newTestEngine(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)})
	ctx := context.Background()
	userID := int64(1)
	store.cash[userID] = decimal.NewFromInt(10000)

	trade, err := eng.ExecuteBuy(ctx, userID, "AAPL", 10)
	require.NoError(t, err)
	assert.Equal(t, models.SideBuy, trade.Side)
	assert.True(t, trade.Amount.Equal(decimal.NewFromInt(1500)), "cost mismatch: %s", trade.Amount)

	assert.True(t, store.cash[userID].Equal(decimal.NewFromInt(8500)), "balance mismatch: %s", store.cash[userID])
	assert.Equal(t, int64(10), store.holdings[userID]["AAPL"])
	require.Len(t, store.history[userID], 1)
	rec := store.history[userID][0]
	assert.Equal(t, models.SideBuy, rec.Side)
	assert.Equal(t, int64(10), rec.Shares)
	assert.True(t, rec.Price.Equal(decimal.NewFromInt(150)))
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(1500)))
}

func TestExecuteSell_PartialLeavesRemainder(t *testing.T) {
	eng, store := newTestEngine(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)})
	ctx := context.Background()
	userID := int64(1)
	store.cash[userID] = decimal.NewFromInt(10000)

	_, err := eng.ExecuteBuy(ctx, userID, "AAPL", 10)
	require.NoError(t, err)

	// price moves before the sell
	eng.quotes.(*fakeQuotes).prices["AAPL"] = decimal.NewFromInt(160)

	trade, err := eng.ExecuteSell(ctx, userID, "AAPL", 4)
	require.NoError(t, err)
	assert.True(t, trade.Amount.Equal(decimal.NewFromInt(640)))

	assert.True(t, store.cash[userID].Equal(decimal.NewFromInt(9140)), "balance mismatch: %s", store.cash[userID])
	assert.Equal(t, int64(6), store.holdings[userID]["AAPL"])
	require.Len(t, store.history[userID], 2)
	assert.Equal(t, models.SideSell, store.history[userID][1].Side)
}

func TestExecuteSell_FullRemovesHolding(t *testing.T) {
	eng, store := newTestEngine(map[string]decimal.Decimal{"TCS": decimal.NewFromInt(50)})
	ctx := context.Background()
	userID := int64(1)
	store.cash[userID] = decimal.NewFromInt(1000)

	_, err := eng.ExecuteBuy(ctx, userID, "TCS", 5)
	require.NoError(t, err)
	_, err = eng.ExecuteSell(ctx, userID, "TCS", 5)
	require.NoError(t, err)

	_, ok := store.holdings[userID]["TCS"]
	assert.False(t, ok, "holding should be removed at zero shares")
	// round-trip at the same price restores the cash balance
	assert.True(t, store.cash[userID].Equal(decimal.NewFromInt(1000)), "balance mismatch: %s", store.cash[userID])
}

func TestExecuteBuy_InsufficientFundsLeavesStateUnchanged(t *testing.T) {
	eng, store := newTestEngine(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)})
	ctx := context.Background()
	userID := int64(1)
	store.cash[userID] = decimal.NewFromInt(100)

	_, err := eng.ExecuteBuy(ctx, userID, "AAPL", 10)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	assert.True(t, store.cash[userID].Equal(decimal.NewFromInt(100)))
	assert.Empty(t, store.holdings[userID])
	assert.Empty(t, store.history[userID])
}

func TestExecuteSell_InsufficientShares(t *testing.T) {
	eng, store := newTestEngine(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)})
	ctx := context.Background()
	userID := int64(1)
	store.cash[userID] = decimal.NewFromInt(10000)

	_, err := eng.ExecuteBuy(ctx, userID, "AAPL", 3)
	require.NoError(t, err)

	_, err = eng.ExecuteSell(ctx, userID, "AAPL", 5)
	require.ErrorIs(t, err, models.ErrInsufficientShares)

	assert.Equal(t, int64(3), store.holdings[userID]["AAPL"])
	assert.True(t, store.cash[userID].Equal(decimal.NewFromInt(9550)))
	assert.Len(t, store.history[userID], 1)
}

func TestExecuteSell_NoSuchHolding(t *testing.T) {
	eng, store := newTestEngine(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)})
	store.cash[1] = decimal.NewFromInt(1000)

	_, err := eng.ExecuteSell(context.Background(), 1, "AAPL", 1)
	require.ErrorIs(t, err, models.ErrNoSuchHolding)
	assert.True(t, store.cash[1].Equal(decimal.NewFromInt(1000)))
}

func TestExecuteBuy_Validation(t *testing.T) {
	eng, store := newTestEngine(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)})
	ctx := context.Background()
	store.cash[1] = decimal.NewFromInt(1000)

	_, err := eng.ExecuteBuy(ctx, 1, "", 1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = eng.ExecuteBuy(ctx, 1, "AAPL", 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = eng.ExecuteBuy(ctx, 1, "AAPL", -3)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = eng.ExecuteBuy(ctx, 1, "NOPE", 1)
	assert.ErrorIs(t, err, models.ErrUnknownSymbol)

	assert.Empty(t, store.history[1])
}

func TestDepositCash(t *testing.T) {
	eng, store := newTestEngine(nil)
	ctx := context.Background()
	store.cash[1] = decimal.NewFromInt(100)

	require.NoError(t, eng.DepositCash(ctx, 1, decimal.NewFromFloat(49.50)))
	assert.True(t, store.cash[1].Equal(decimal.NewFromFloat(149.50)))

	assert.ErrorIs(t, eng.DepositCash(ctx, 1, decimal.Zero), models.ErrInvalidInput)
	assert.ErrorIs(t, eng.DepositCash(ctx, 1, decimal.NewFromInt(-5)), models.ErrInvalidInput)
}

func TestPortfolio_EnrichesWithQuotes(t *testing.T) {
	eng, store := newTestEngine(map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(150),
		"TCS":  decimal.NewFromInt(50),
	})
	ctx := context.Background()
	userID := int64(7)
	store.cash[userID] = decimal.NewFromInt(10000)

	_, err := eng.ExecuteBuy(ctx, userID, "AAPL", 10)
	require.NoError(t, err)
	_, err = eng.ExecuteBuy(ctx, userID, "TCS", 2)
	require.NoError(t, err)

	view, err := eng.Portfolio(ctx, userID)
	require.NoError(t, err)
	require.Len(t, view.Positions, 2)
	assert.True(t, view.Cash.Equal(decimal.NewFromInt(8400)), "cash mismatch: %s", view.Cash)
	assert.True(t, view.GrandTotal.Equal(decimal.NewFromInt(10000)), "grand total mismatch: %s", view.GrandTotal)

	for _, p := range view.Positions {
		assert.NotEmpty(t, p.Name)
		assert.True(t, p.Value.Equal(p.Price.Mul(decimal.NewFromInt(p.Shares))))
	}
}

// Two simultaneous buys, each affordable alone but not together: exactly one
// must succeed.
func TestConcurrentBuys_ExactlyOneSucceeds(t *testing.T) {
	eng, store := newTestEngine(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)})
	userID := int64(1)
	store.cash[userID] = decimal.NewFromInt(2000) // each buy costs 1500

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.ExecuteBuy(context.Background(), userID, "AAPL", 10)
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, models.ErrInsufficientFunds)
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.True(t, store.cash[userID].Equal(decimal.NewFromInt(500)))
	assert.Equal(t, int64(10), store.holdings[userID]["AAPL"])
}
