package balance_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lebim01/dotacasino-api-sub001/internal/domain"
	"github.com/Lebim01/dotacasino-api-sub001/internal/repository"
	"github.com/Lebim01/dotacasino-api-sub001/internal/service/balance"
	"github.com/Lebim01/dotacasino-api-sub001/internal/testutil"
)

func newService(t *testing.T) (*balance.Service, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := balance.NewService(
		repository.NewWalletRepository(db),
		repository.NewLedgerRepository(db),
		db,
	)
	return svc, db
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestAdjust_CreditAndIdempotentReplay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	svc, db := newService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	wallet := testutil.SeedWallet(t, db, ownerID, "USD", decimal.Zero)

	req := balance.AdjustRequest{
		Selector:       domain.SelectWalletByID(wallet.ID),
		Delta:          mustDecimal(t, "100.00"),
		Kind:           domain.KindAdminAdjust,
		IdempotencyKey: "adjust-k1",
		Metadata:       domain.Metadata{Reason: "signup bonus", Actor: "ops"},
	}

	res, err := svc.Adjust(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Idempotent)
	assert.True(t, res.Wallet.Balance.Equal(mustDecimal(t, "100.00")))
	assert.True(t, res.Entry.Amount.Equal(mustDecimal(t, "100.00")))
	assert.True(t, res.Entry.BalanceAfter.Equal(mustDecimal(t, "100.00")))
	require.NotNil(t, res.Entry.Metadata.PreviousBalance)
	assert.True(t, res.Entry.Metadata.PreviousBalance.IsZero())
	assert.Equal(t, "signup bonus", res.Entry.Metadata.Reason)

	// Same key again: the committed entry is returned, nothing is re-applied.
	replayed, err := svc.Adjust(ctx, req)
	require.NoError(t, err)
	assert.True(t, replayed.Idempotent)
	assert.Equal(t, res.Entry.ID, replayed.Entry.ID)
	assert.True(t, replayed.Wallet.Balance.Equal(mustDecimal(t, "100.00")))

	assert.Equal(t, 1, testutil.CountLedgerEntries(t, db, wallet.ID))
	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(mustDecimal(t, "100.00")))
}

func TestAdjust_SameKeyDifferentDeltaReturnsOriginal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	svc, db := newService(t)
	ctx := context.Background()

	wallet := testutil.SeedWallet(t, db, uuid.New(), "USD", decimal.Zero)

	first, err := svc.Adjust(ctx, balance.AdjustRequest{
		Selector:       domain.SelectWalletByID(wallet.ID),
		Delta:          mustDecimal(t, "25.00"),
		Kind:           domain.KindUserTopup,
		IdempotencyKey: "topup-1",
	})
	require.NoError(t, err)

	// A retry that mutated its payload still maps to the original outcome.
	second, err := svc.Adjust(ctx, balance.AdjustRequest{
		Selector:       domain.SelectWalletByID(wallet.ID),
		Delta:          mustDecimal(t, "999.00"),
		Kind:           domain.KindUserTopup,
		IdempotencyKey: "topup-1",
	})
	require.NoError(t, err)
	assert.True(t, second.Idempotent)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.True(t, second.Entry.Amount.Equal(mustDecimal(t, "25.00")))

	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(mustDecimal(t, "25.00")))
	assert.Equal(t, 1, testutil.CountLedgerEntries(t, db, wallet.ID))
}

func TestAdjust_InsufficientFunds(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	svc, db := newService(t)
	ctx := context.Background()

	wallet := testutil.SeedWallet(t, db, uuid.New(), "USD", mustDecimal(t, "100.00"))

	_, err := svc.Adjust(ctx, balance.AdjustRequest{
		Selector:       domain.SelectWalletByID(wallet.ID),
		Delta:          mustDecimal(t, "-150.00"),
		Kind:           domain.KindWithdraw,
		IdempotencyKey: "withdraw-k2",
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// The rejected debit leaves no trace: no entry, balance untouched, and
	// the key stays free for a later retry.
	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(mustDecimal(t, "100.00")))
	assert.Equal(t, 0, testutil.CountLedgerEntries(t, db, wallet.ID))

	res, err := svc.Adjust(ctx, balance.AdjustRequest{
		Selector:       domain.SelectWalletByID(wallet.ID),
		Delta:          mustDecimal(t, "-50.00"),
		Kind:           domain.KindWithdraw,
		IdempotencyKey: "withdraw-k2",
	})
	require.NoError(t, err)
	assert.False(t, res.Idempotent)
	assert.True(t, res.Wallet.Balance.Equal(mustDecimal(t, "50.00")))
}

func TestAdjust_AllowNegative(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	svc, db := newService(t)
	ctx := context.Background()

	wallet := testutil.SeedWallet(t, db, uuid.New(), "MXN", mustDecimal(t, "10.00"))

	res, err := svc.Adjust(ctx, balance.AdjustRequest{
		Selector:       domain.SelectWalletByID(wallet.ID),
		Delta:          mustDecimal(t, "-15.00"),
		Kind:           domain.KindAdminAdjust,
		IdempotencyKey: "clawback-1",
		AllowNegative:  true,
		Metadata:       domain.Metadata{Reason: "chargeback clawback"},
	})
	require.NoError(t, err)
	assert.True(t, res.Wallet.Balance.Equal(mustDecimal(t, "-5.00")))
	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(mustDecimal(t, "-5.00")))
}

func TestAdjust_LazilyCreatesWalletOnFirstCredit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	svc, db := newService(t)
	ctx := context.Background()

	ownerID := uuid.New()

	res, err := svc.Adjust(ctx, balance.AdjustRequest{
		Selector:       domain.SelectWalletByOwner(ownerID, domain.CurrencyEUR),
		Delta:          mustDecimal(t, "50.00"),
		Kind:           domain.KindUserTopup,
		IdempotencyKey: "first-topup",
	})
	require.NoError(t, err)
	assert.Equal(t, ownerID, res.Wallet.OwnerID)
	assert.Equal(t, domain.CurrencyEUR, res.Wallet.Currency)
	assert.True(t, res.Wallet.Balance.Equal(mustDecimal(t, "50.00")))
	assert.True(t, testutil.GetWalletBalance(t, db, res.Wallet.ID).Equal(mustDecimal(t, "50.00")))
}

func TestAdjust_DebitOnMissingWalletFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	svc, _ := newService(t)
	ctx := context.Background()

	// A debit never creates a wallet, by owner or by id.
	_, err := svc.Adjust(ctx, balance.AdjustRequest{
		Selector:       domain.SelectWalletByOwner(uuid.New(), domain.CurrencyUSD),
		Delta:          mustDecimal(t, "-10.00"),
		Kind:           domain.KindBet,
		IdempotencyKey: "bet-on-missing",
	})
	require.ErrorIs(t, err, domain.ErrWalletNotFound)

	_, err = svc.Adjust(ctx, balance.AdjustRequest{
		Selector:       domain.SelectWalletByID(uuid.New()),
		Delta:          mustDecimal(t, "10.00"),
		Kind:           domain.KindUserTopup,
		IdempotencyKey: "topup-on-missing-id",
	})
	require.ErrorIs(t, err, domain.ErrWalletNotFound)
}

func TestAdjust_RejectsInvalidRequests(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	svc, db := newService(t)
	ctx := context.Background()

	wallet := testutil.SeedWallet(t, db, uuid.New(), "USD", mustDecimal(t, "10.00"))

	tests := []struct {
		name    string
		req     balance.AdjustRequest
		wantErr error
	}{
		{
			name: "zero delta",
			req: balance.AdjustRequest{
				Selector: domain.SelectWalletByID(wallet.ID),
				Delta:    decimal.Zero,
				Kind:     domain.KindAdminAdjust,
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "unknown kind",
			req: balance.AdjustRequest{
				Selector: domain.SelectWalletByID(wallet.ID),
				Delta:    mustDecimal(t, "1.00"),
				Kind:     domain.EntryKind("REFUND"),
			},
			wantErr: domain.ErrInvalidKind,
		},
		{
			name: "empty selector",
			req: balance.AdjustRequest{
				Delta: mustDecimal(t, "1.00"),
				Kind:  domain.KindAdminAdjust,
			},
			wantErr: domain.ErrInvalidSelector,
		},
		{
			name: "invalid currency in owner selector",
			req: balance.AdjustRequest{
				Selector: domain.SelectWalletByOwner(uuid.New(), domain.Currency("DOGE")),
				Delta:    mustDecimal(t, "1.00"),
				Kind:     domain.KindAdminAdjust,
			},
			wantErr: domain.ErrInvalidCurrency,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Adjust(ctx, tc.req)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}

	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(mustDecimal(t, "10.00")))
	assert.Equal(t, 0, testutil.CountLedgerEntries(t, db, wallet.ID))
}

func TestAdjust_ConcurrentDistinctKeys(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	svc, db := newService(t)
	ctx := context.Background()

	wallet := testutil.SeedWallet(t, db, uuid.New(), "USD", mustDecimal(t, "1000.00"))

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			delta := decimal.NewFromInt(int64(n + 1))
			if n%2 == 1 {
				delta = delta.Neg()
			}
			_, err := svc.Adjust(ctx, balance.AdjustRequest{
				Selector:       domain.SelectWalletByID(wallet.ID),
				Delta:          delta,
				Kind:           domain.KindSpinGame,
				IdempotencyKey: uuid.NewString(),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// +1 -2 +3 -4 +5 -6 +7 -8 +9 -10 = -5
	want := mustDecimal(t, "995.00")
	got := testutil.GetWalletBalance(t, db, wallet.ID)
	assert.True(t, got.Equal(want), "got %s, want %s", got, want)
	assert.Equal(t, workers, testutil.CountLedgerEntries(t, db, wallet.ID))

	// Ledger sum and the wallet projection must agree at all times.
	sum := testutil.SumLedgerAmounts(t, db, wallet.ID)
	assert.True(t, got.Equal(mustDecimal(t, "1000.00").Add(sum)))
}

func TestAdjust_ConcurrentSameKeyAppliesOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	svc, db := newService(t)
	ctx := context.Background()

	wallet := testutil.SeedWallet(t, db, uuid.New(), "USD", decimal.Zero)

	const workers = 5
	var wg sync.WaitGroup
	results := make(chan *balance.AdjustResult, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Adjust(ctx, balance.AdjustRequest{
				Selector:       domain.SelectWalletByID(wallet.ID),
				Delta:          mustDecimal(t, "25.00"),
				Kind:           domain.KindWin,
				IdempotencyKey: "win-settlement-77",
			})
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	applied := 0
	for res := range results {
		if !res.Idempotent {
			applied++
		}
		assert.True(t, res.Entry.Amount.Equal(mustDecimal(t, "25.00")))
	}
	assert.Equal(t, 1, applied, "exactly one caller must win the key")

	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(mustDecimal(t, "25.00")))
	assert.Equal(t, 1, testutil.CountLedgerEntries(t, db, wallet.ID))
}

func TestAdjust_ConcurrentLazyCreateSameOwner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	svc, db := newService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	const workers = 4

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Adjust(ctx, balance.AdjustRequest{
				Selector:       domain.SelectWalletByOwner(ownerID, domain.CurrencyBRL),
				Delta:          mustDecimal(t, "10.00"),
				Kind:           domain.KindUserTopup,
				IdempotencyKey: uuid.NewString(),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// All four credits land on one wallet even though none existed upfront.
	w, err := svc.GetWallet(ctx, domain.SelectWalletByOwner(ownerID, domain.CurrencyBRL))
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(mustDecimal(t, "40.00")))
	assert.Equal(t, workers, testutil.CountLedgerEntries(t, db, w.ID))
}

func TestGetWallet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	svc, db := newService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	wallet := testutil.SeedWallet(t, db, ownerID, "USD", mustDecimal(t, "42.00"))

	byID, err := svc.GetWallet(ctx, domain.SelectWalletByID(wallet.ID))
	require.NoError(t, err)
	assert.True(t, byID.Balance.Equal(mustDecimal(t, "42.00")))

	byOwner, err := svc.GetWallet(ctx, domain.SelectWalletByOwner(ownerID, domain.CurrencyUSD))
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, byOwner.ID)

	_, err = svc.GetWallet(ctx, domain.SelectWalletByID(uuid.New()))
	require.ErrorIs(t, err, domain.ErrWalletNotFound)

	_, err = svc.GetWallet(ctx, domain.SelectWalletByOwner(ownerID, domain.CurrencyMXN))
	require.ErrorIs(t, err, domain.ErrWalletNotFound)
}

func TestGetOwnerWallets(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	svc, db := newService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	testutil.SeedWallet(t, db, ownerID, "USD", mustDecimal(t, "1.00"))
	testutil.SeedWallet(t, db, ownerID, "MXN", mustDecimal(t, "2.00"))
	testutil.SeedWallet(t, db, uuid.New(), "USD", mustDecimal(t, "3.00"))

	wallets, err := svc.GetOwnerWallets(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, wallets, 2)

	none, err := svc.GetOwnerWallets(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListEntries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	svc, db := newService(t)
	ctx := context.Background()

	wallet := testutil.SeedWallet(t, db, uuid.New(), "USD", decimal.Zero)

	for i := 0; i < 3; i++ {
		_, err := svc.Adjust(ctx, balance.AdjustRequest{
			Selector:       domain.SelectWalletByID(wallet.ID),
			Delta:          decimal.NewFromInt(int64(i + 1)),
			Kind:           domain.KindUserTopup,
			IdempotencyKey: uuid.NewString(),
		})
		require.NoError(t, err)
	}

	entries, total, err := svc.ListEntries(ctx, wallet.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, entries, 2)
	// Newest first.
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(3)))
	assert.True(t, entries[1].Amount.Equal(decimal.NewFromInt(2)))

	rest, total, err := svc.ListEntries(ctx, wallet.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rest, 1)
	assert.True(t, rest[0].Amount.Equal(decimal.NewFromInt(1)))

	_, _, err = svc.ListEntries(ctx, uuid.New(), 10, 0)
	require.ErrorIs(t, err, domain.ErrWalletNotFound)
}
