package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	KindAdminAdjust EntryKind = "ADMIN_ADJUST"
	KindUserTopup   EntryKind = "USER_TOPUP"
	KindBet         EntryKind = "BET"
	KindWin         EntryKind = "WIN"
	KindWithdraw    EntryKind = "WITHDRAW"
	KindSpinGame    EntryKind = "SPIN_GAME"
	// KindOther covers balance-affecting events that do not fit the known
	// kinds; the reason belongs in Metadata.Reason.
	KindOther EntryKind = "OTHER"
)

func (k EntryKind) IsValid() bool {
	switch k {
	case KindAdminAdjust, KindUserTopup, KindBet, KindWin, KindWithdraw, KindSpinGame, KindOther:
		return true
	}
	return false
}

// Metadata is the structured context recorded alongside a ledger entry.
// PreviousBalance is filled in by the adjustment service, never by callers.
type Metadata struct {
	Reason          string           `json:"reason,omitempty"`
	Actor           string           `json:"actor,omitempty"`
	Source          string           `json:"source,omitempty"`
	PreviousBalance *decimal.Decimal `json:"previous_balance,omitempty"`
}

// LedgerEntry is an immutable fact: this wallet's balance changed by
// Amount (positive = credit, negative = debit) resulting in BalanceAfter.
// Entries are never updated or deleted; corrections are new offsetting
// entries.
type LedgerEntry struct {
	ID             uuid.UUID
	WalletID       uuid.UUID
	Kind           EntryKind
	Amount         decimal.Decimal
	BalanceAfter   decimal.Decimal
	IdempotencyKey *string
	Metadata       Metadata
	CreatedAt      time.Time
}
