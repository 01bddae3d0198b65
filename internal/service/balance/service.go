// Package balance is the only mutation path for wallet balances. Every
// adjustment is applied under a single-row pessimistic lock and committed
// atomically with its ledger entry, so the wallet projection and the
// ledger can never disagree.
package balance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Lebim01/dotacasino-api-sub001/internal/domain"
)

type walletRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwnerAndCurrency(ctx context.Context, ownerID uuid.UUID, currency domain.Currency) (*domain.Wallet, error)
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, sel domain.WalletSelector) (*domain.Wallet, error)
	Create(ctx context.Context, tx *sql.Tx, wallet *domain.Wallet) error
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance decimal.Decimal) error
}

type ledgerRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
}

type Service struct {
	wallets walletRepo
	ledger  ledgerRepo
	db      *sql.DB
}

func NewService(wallets walletRepo, ledger ledgerRepo, db *sql.DB) *Service {
	return &Service{wallets: wallets, ledger: ledger, db: db}
}

// GetWallet is a read for display and reporting. It takes no lock; policy
// decisions never use this path.
func (s *Service) GetWallet(ctx context.Context, sel domain.WalletSelector) (*domain.Wallet, error) {
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("GetWallet: %w", err)
	}

	var (
		w   *domain.Wallet
		err error
	)
	if sel.WalletID != nil {
		w, err = s.wallets.GetByID(ctx, *sel.WalletID)
	} else {
		w, err = s.wallets.GetByOwnerAndCurrency(ctx, *sel.OwnerID, sel.Currency)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GetWallet: %w", domain.ErrWalletNotFound)
		}
		return nil, fmt.Errorf("GetWallet: %w", err)
	}
	return w, nil
}

func (s *Service) GetOwnerWallets(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error) {
	wallets, err := s.wallets.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("GetOwnerWallets: %w", err)
	}
	return wallets, nil
}

// ListEntries returns one page of a wallet's ledger, newest first.
func (s *Service) ListEntries(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	if _, err := s.wallets.GetByID(ctx, walletID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, 0, fmt.Errorf("ListEntries: %w", domain.ErrWalletNotFound)
		}
		return nil, 0, fmt.Errorf("ListEntries: %w", err)
	}

	entries, total, err := s.ledger.ListByWallet(ctx, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEntries: %w", err)
	}
	return entries, total, nil
}
