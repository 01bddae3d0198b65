package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be a non-zero decimal")
	ErrInvalidCurrency   = errors.New("invalid currency")
	ErrInvalidKind       = errors.New("invalid entry kind")
	ErrInvalidSelector   = errors.New("wallet selector must carry a wallet id or an owner and currency")
	ErrMissingRate       = errors.New("no exchange rate for currency")
	ErrConflict          = errors.New("concurrent modification, retry")
)
