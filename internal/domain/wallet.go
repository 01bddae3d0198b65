package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is the current balance of one owner in one currency. There is at
// most one wallet per (owner, currency) pair; the balance is mutated only
// through the balance adjustment service.
type Wallet struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Currency  Currency
	Balance   decimal.Decimal
	CreatedAt time.Time
}

// WalletSelector resolves to exactly one wallet, either directly by id or
// by the (owner, currency) pair.
type WalletSelector struct {
	WalletID *uuid.UUID
	OwnerID  *uuid.UUID
	Currency Currency
}

func SelectWalletByID(id uuid.UUID) WalletSelector {
	return WalletSelector{WalletID: &id}
}

func SelectWalletByOwner(ownerID uuid.UUID, currency Currency) WalletSelector {
	return WalletSelector{OwnerID: &ownerID, Currency: currency}
}

func (s WalletSelector) Validate() error {
	if s.WalletID != nil {
		return nil
	}
	if s.OwnerID == nil {
		return ErrInvalidSelector
	}
	if !s.Currency.IsValid() {
		return ErrInvalidCurrency
	}
	return nil
}

// ByOwner reports whether the selector identifies the wallet by
// (owner, currency), which is the only form that can lazily create a
// wallet on first credit.
func (s WalletSelector) ByOwner() bool {
	return s.WalletID == nil && s.OwnerID != nil
}
