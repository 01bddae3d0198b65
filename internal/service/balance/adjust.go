package balance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Lebim01/dotacasino-api-sub001/internal/domain"
	"github.com/Lebim01/dotacasino-api-sub001/internal/logging"
	"github.com/Lebim01/dotacasino-api-sub001/internal/repository"
)

// errWalletCreateRace marks a lost race on lazy wallet creation; the row
// now exists, so one retry is guaranteed to lock it instead.
var errWalletCreateRace = errors.New("lost wallet create race")

type AdjustRequest struct {
	Selector domain.WalletSelector
	// Delta is the signed amount: positive credits, negative debits.
	Delta decimal.Decimal
	Kind  domain.EntryKind
	// IdempotencyKey is unique across all ledger entries. An empty key
	// opts the caller out of replay protection.
	IdempotencyKey string
	// AllowNegative permits the resulting balance to go below zero for
	// this single operation.
	AllowNegative bool
	Metadata      domain.Metadata
}

func (req AdjustRequest) validate() error {
	if err := req.Selector.Validate(); err != nil {
		return err
	}
	if req.Delta.IsZero() {
		return domain.ErrInvalidAmount
	}
	if !req.Kind.IsValid() {
		return domain.ErrInvalidKind
	}
	return nil
}

type AdjustResult struct {
	Wallet *domain.Wallet
	Entry  *domain.LedgerEntry
	// Idempotent is true when the request replayed a previously committed
	// entry instead of applying a new one.
	Idempotent bool
}

// Adjust applies a signed delta to exactly one wallet: idempotency check,
// locked read, policy check, then wallet update and ledger insert in one
// transaction. On any failure the wallet and ledger are left exactly as
// they were before the call, or as a previous committed call with the same
// idempotency key left them.
func (s *Service) Adjust(ctx context.Context, req AdjustRequest) (*AdjustResult, error) {
	log := logging.FromContext(ctx)

	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("Adjust: %w", err)
	}

	// Cheap pre-check before taking the row lock. A concurrent writer can
	// still slip past this; the unique constraint settles that race below.
	if req.IdempotencyKey != "" {
		res, err := s.replay(ctx, req.IdempotencyKey)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Adjust: idempotency check: %w", err)
		}
	}

	res, err := s.apply(ctx, req)
	if err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintLedgerIdempotencyKey) {
			// A concurrent writer with the same key committed first. Its
			// entry is this operation's result.
			res, rerr := s.replay(ctx, req.IdempotencyKey)
			if rerr != nil {
				return nil, fmt.Errorf("Adjust: replay after key conflict: %w", rerr)
			}
			return res, nil
		}
		return nil, fmt.Errorf("Adjust: %w", err)
	}

	log.Info("balance adjusted",
		"wallet_id", res.Wallet.ID,
		"kind", req.Kind,
		"amount", req.Delta.String(),
		"balance_after", res.Entry.BalanceAfter.String(),
	)
	return res, nil
}

func (s *Service) replay(ctx context.Context, key string) (*AdjustResult, error) {
	entry, err := s.ledger.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	wallet, err := s.wallets.GetByID(ctx, entry.WalletID)
	if err != nil {
		return nil, fmt.Errorf("replay: load wallet: %w", err)
	}
	return &AdjustResult{Wallet: wallet, Entry: entry, Idempotent: true}, nil
}

func (s *Service) apply(ctx context.Context, req AdjustRequest) (*AdjustResult, error) {
	for attempt := range 2 {
		res, err := s.applyOnce(ctx, req)
		if errors.Is(err, errWalletCreateRace) && attempt == 0 {
			continue
		}
		return res, err
	}
	return nil, domain.ErrConflict
}

func (s *Service) applyOnce(ctx context.Context, req AdjustRequest) (*AdjustResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("applyOnce: begin tx: %w", err)
	}
	defer tx.Rollback()

	wallet, err := s.lockWallet(ctx, tx, req)
	if err != nil {
		return nil, fmt.Errorf("applyOnce: %w", err)
	}

	newBalance := wallet.Balance.Add(req.Delta)
	if newBalance.IsNegative() && !req.AllowNegative {
		return nil, fmt.Errorf("applyOnce: %w", domain.ErrInsufficientFunds)
	}

	previous := wallet.Balance
	metadata := req.Metadata
	metadata.PreviousBalance = &previous

	var key *string
	if req.IdempotencyKey != "" {
		key = &req.IdempotencyKey
	}

	entry := &domain.LedgerEntry{
		ID:             uuid.New(),
		WalletID:       wallet.ID,
		Kind:           req.Kind,
		Amount:         req.Delta,
		BalanceAfter:   newBalance,
		IdempotencyKey: key,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.ledger.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("applyOnce: create entry: %w", err)
	}
	if err := s.wallets.UpdateBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return nil, fmt.Errorf("applyOnce: update wallet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("applyOnce: commit: %w", err)
	}

	wallet.Balance = newBalance
	return &AdjustResult{Wallet: wallet, Entry: entry}, nil
}

// lockWallet resolves the selector under FOR UPDATE. A missing wallet is
// created lazily when the operation is a credit addressed by
// (owner, currency); any other miss is the caller's error.
func (s *Service) lockWallet(ctx context.Context, tx *sql.Tx, req AdjustRequest) (*domain.Wallet, error) {
	wallet, err := s.wallets.GetForUpdate(ctx, tx, req.Selector)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lockWallet: %w", err)
	}

	if !req.Selector.ByOwner() || req.Delta.Sign() <= 0 {
		return nil, fmt.Errorf("lockWallet: %w", domain.ErrWalletNotFound)
	}

	wallet = &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   *req.Selector.OwnerID,
		Currency:  req.Selector.Currency,
		Balance:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.wallets.Create(ctx, tx, wallet); err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintWalletOwnerCurrency) {
			return nil, errWalletCreateRace
		}
		return nil, fmt.Errorf("lockWallet: create: %w", err)
	}
	return wallet, nil
}
