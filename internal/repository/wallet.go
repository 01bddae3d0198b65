package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Lebim01/dotacasino-api-sub001/internal/domain"
)

const walletColumns = `id, owner_id, currency, balance, created_at`

type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return w, nil
}

func (r *WalletRepository) GetByOwnerAndCurrency(ctx context.Context, ownerID uuid.UUID, currency domain.Currency) (*domain.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 AND currency = $2`,
		ownerID, currency,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByOwnerAndCurrency: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByOwnerAndCurrency: %w", err)
	}
	return w, nil
}

func (r *WalletRepository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 ORDER BY created_at`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByOwnerID: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByOwnerID: scan: %w", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByOwnerID: rows: %w", err)
	}
	return wallets, nil
}

// GetForUpdate locks the single wallet row resolved by the selector for the
// duration of the surrounding transaction. Concurrent callers on the same
// wallet block here; callers on different wallets do not.
func (r *WalletRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, sel domain.WalletSelector) (*domain.Wallet, error) {
	var row *sql.Row
	if sel.WalletID != nil {
		row = tx.QueryRowContext(ctx,
			`SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, *sel.WalletID,
		)
	} else {
		row = tx.QueryRowContext(ctx,
			`SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 AND currency = $2 FOR UPDATE`,
			*sel.OwnerID, sel.Currency,
		)
	}
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return w, nil
}

func (r *WalletRepository) Create(ctx context.Context, tx *sql.Tx, wallet *domain.Wallet) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO wallets (id, owner_id, currency, balance, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		wallet.ID, wallet.OwnerID, wallet.Currency, wallet.Balance, wallet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *WalletRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1 WHERE id = $2`,
		newBalance, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalance: %w", domain.ErrNotFound)
	}
	return nil
}

func scanWallet(s scanner) (*domain.Wallet, error) {
	var w domain.Wallet
	var balance string
	err := s.Scan(&w.ID, &w.OwnerID, &w.Currency, &balance, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	return &w, nil
}
