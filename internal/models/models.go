package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade sides as stored in the history table.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

type User struct {
	ID           int64           `db:"id" json:"id"`
	Username     string          `db:"username" json:"username"`
	PasswordHash string          `db:"password_hash" json:"-"`
	Cash         decimal.Decimal `db:"cash" json:"cash"`
}

type Holding struct {
	Symbol string `db:"symbol" json:"symbol"`
	Shares int64  `db:"shares" json:"shares"`
}

// HistoryRecord rows are append-only: never updated or deleted.
type HistoryRecord struct {
	ID           int64           `db:"id" json:"id"`
	Symbol       string          `db:"symbol" json:"symbol"`
	Side         string          `db:"side" json:"side"`
	Shares       int64           `db:"shares" json:"shares"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	TransactedAt time.Time       `db:"transacted_at" json:"transacted_at"`
}

type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}
