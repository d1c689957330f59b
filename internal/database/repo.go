package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"papertrade/internal/models"
)

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

func (r *Repo) CreateUser(ctx context.Context, username, passwordHash string, startingCash decimal.Decimal) (int64, error) {
	var id int64
	q := `INSERT INTO users (username, password_hash, cash) VALUES ($1, $2, $3::numeric) RETURNING id`
	if err := r.db.QueryRowContext(ctx, q, username, passwordHash, startingCash.String()).Scan(&id); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return 0, models.ErrUsernameTaken
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT id, username, password_hash, cash FROM users WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (r *Repo) GetUserByID(ctx context.Context, userID int64) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT id, username, password_hash, cash FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (r *Repo) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// ExecuteBuy applies a buy atomically: history insert, portfolio upsert and
// a conditional cash decrement in one transaction. The balance check is part
// of the UPDATE itself, so two concurrent buys can never jointly overdraw.
func (r *Repo) ExecuteBuy(ctx context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) error {
	cost := price.Mul(decimal.NewFromInt(shares))

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin buy tx: %w", err)
	}
	defer tx.Rollback()

	histQ := `INSERT INTO history (user_id, symbol, side, shares, price, amount, transacted_at) VALUES ($1, $2, 'buy', $3, $4::numeric, $5::numeric, now())`
	if _, err := tx.ExecContext(ctx, histQ, userID, symbol, shares, price.String(), cost.String()); err != nil {
		return fmt.Errorf("insert buy history: %w", err)
	}

	upsert := `INSERT INTO portfolios (user_id, symbol, shares) VALUES ($1, $2, $3) ON CONFLICT (user_id, symbol) DO UPDATE SET shares = portfolios.shares + $3`
	if _, err := tx.ExecContext(ctx, upsert, userID, symbol, shares); err != nil {
		return fmt.Errorf("upsert portfolio: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE users SET cash = cash - $1::numeric WHERE id = $2 AND cash >= $1::numeric`, cost.String(), userID)
	if err != nil {
		return fmt.Errorf("decrement cash: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrInsufficientFunds
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit buy: %w", err)
	}
	return nil
}

// ExecuteSell is the mirror of ExecuteBuy. The share decrement is conditional
// on the holding covering the order; a row that reaches zero shares is
// deleted so no zero-share rows persist.
func (r *Repo) ExecuteSell(ctx context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) error {
	proceeds := price.Mul(decimal.NewFromInt(shares))

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sell tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE portfolios SET shares = shares - $1 WHERE user_id = $2 AND symbol = $3 AND shares >= $1`, shares, userID, symbol)
	if err != nil {
		return fmt.Errorf("decrement shares: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var owned int64
		err := tx.QueryRowContext(ctx, `SELECT shares FROM portfolios WHERE user_id = $1 AND symbol = $2`, userID, symbol).Scan(&owned)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNoSuchHolding
		}
		if err != nil {
			return fmt.Errorf("probe holding: %w", err)
		}
		return models.ErrInsufficientShares
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM portfolios WHERE user_id = $1 AND symbol = $2 AND shares = 0`, userID, symbol); err != nil {
		return fmt.Errorf("delete empty holding: %w", err)
	}

	histQ := `INSERT INTO history (user_id, symbol, side, shares, price, amount, transacted_at) VALUES ($1, $2, 'sell', $3, $4::numeric, $5::numeric, now())`
	if _, err := tx.ExecContext(ctx, histQ, userID, symbol, shares, price.String(), proceeds.String()); err != nil {
		return fmt.Errorf("insert sell history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET cash = cash + $1::numeric WHERE id = $2`, proceeds.String(), userID); err != nil {
		return fmt.Errorf("increment cash: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sell: %w", err)
	}
	return nil
}

func (r *Repo) AddCash(ctx context.Context, userID int64, amount decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET cash = cash + $1::numeric WHERE id = $2`, amount.String(), userID)
	if err != nil {
		return fmt.Errorf("add cash: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (r *Repo) GetHoldings(ctx context.Context, userID int64) ([]models.Holding, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT symbol, shares FROM portfolios WHERE user_id = $1 ORDER BY symbol ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()
	res := []models.Holding{}
	for rows.Next() {
		var h models.Holding
		if err := rows.StructScan(&h); err != nil {
			r.log.Warnf("scan holding failed: %v", err)
			continue
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func (r *Repo) GetHistory(ctx context.Context, userID int64) ([]models.HistoryRecord, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT id, symbol, side, shares, price, amount, transacted_at FROM history WHERE user_id = $1 ORDER BY transacted_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	res := []models.HistoryRecord{}
	for rows.Next() {
		var h models.HistoryRecord
		if err := rows.StructScan(&h); err != nil {
			r.log.Warnf("scan history row failed: %v", err)
			continue
		}
		res = append(res, h)
	}
	return res, rows.Err()
}
