package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Lebim01/dotacasino-api-sub001/internal/domain"
)

func SeedWallet(t *testing.T, db *sql.DB, ownerID uuid.UUID, currency string, balance decimal.Decimal) *domain.Wallet {
	t.Helper()

	w := &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Currency:  domain.Currency(currency),
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO wallets (id, owner_id, currency, balance, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		w.ID, w.OwnerID, w.Currency, w.Balance, w.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed wallet %s/%s: %v", ownerID, currency, err)
	}
	return w
}

func GetWalletBalance(t *testing.T, db *sql.DB, walletID uuid.UUID) decimal.Decimal {
	t.Helper()

	var raw string
	err := db.QueryRow(`SELECT balance FROM wallets WHERE id = $1`, walletID).Scan(&raw)
	if err != nil {
		t.Fatalf("get wallet balance %s: %v", walletID, err)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse wallet balance %q: %v", raw, err)
	}
	return balance
}

func CountLedgerEntries(t *testing.T, db *sql.DB, walletID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE wallet_id = $1`, walletID).Scan(&count)
	if err != nil {
		t.Fatalf("count ledger entries for wallet %s: %v", walletID, err)
	}
	return count
}

// SumLedgerAmounts returns the signed sum of every entry for the wallet,
// which must always equal the wallet's balance.
func SumLedgerAmounts(t *testing.T, db *sql.DB, walletID uuid.UUID) decimal.Decimal {
	t.Helper()

	var raw string
	err := db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE wallet_id = $1`, walletID,
	).Scan(&raw)
	if err != nil {
		t.Fatalf("sum ledger amounts for wallet %s: %v", walletID, err)
	}
	sum, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse ledger sum %q: %v", raw, err)
	}
	return sum
}
