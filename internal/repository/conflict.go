package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Constraint names from the migrations. The adjustment service tells the
// two unique-violation races apart by which constraint fired.
const (
	ConstraintWalletOwnerCurrency  = "wallets_owner_id_currency_key"
	ConstraintLedgerIdempotencyKey = "ledger_entries_idempotency_key_key"
)

func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && pqErr.Constraint == constraint
}
