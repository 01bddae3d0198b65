package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Lebim01/dotacasino-api-sub001/internal/auth"
	"github.com/Lebim01/dotacasino-api-sub001/internal/domain"
	"github.com/Lebim01/dotacasino-api-sub001/internal/logging"
	"github.com/Lebim01/dotacasino-api-sub001/internal/service/balance"
)

type adjuster interface {
	Adjust(ctx context.Context, req balance.AdjustRequest) (*balance.AdjustResult, error)
}

type AdjustmentHandler struct {
	balances adjuster
}

func NewAdjustmentHandler(balances adjuster) *AdjustmentHandler {
	return &AdjustmentHandler{balances: balances}
}

type adjustRequestBody struct {
	WalletID      string `json:"wallet_id"`
	OwnerID       string `json:"owner_id"`
	Currency      string `json:"currency"`
	Amount        string `json:"amount"`
	Kind          string `json:"kind"`
	AllowNegative bool   `json:"allow_negative"`
	Reason        string `json:"reason"`
	Source        string `json:"source"`
}

type walletResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at"`
}

type entryResponse struct {
	ID           string `json:"id"`
	WalletID     string `json:"wallet_id"`
	Kind         string `json:"kind"`
	Amount       string `json:"amount"`
	BalanceAfter string `json:"balance_after"`
	Reason       string `json:"reason,omitempty"`
	Actor        string `json:"actor,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type adjustResponse struct {
	Wallet     walletResponse `json:"wallet"`
	Entry      entryResponse  `json:"entry"`
	Idempotent bool           `json:"idempotent"`
}

// Create applies one signed balance adjustment. The Idempotency-Key header
// is mandatory on this surface so ambiguous-outcome retries from webhooks
// and admin tools are always safe.
func (h *AdjustmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		RespondAppError(w, ErrMissingIdempotencyKey, nil)
		return
	}

	var body adjustRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	req, fields := buildAdjustRequest(body, key)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	if actor, ok := auth.ServiceFromContext(r.Context()); ok && req.Metadata.Actor == "" {
		req.Metadata.Actor = actor
	}

	res, err := h.balances.Adjust(r.Context(), *req)
	if err != nil {
		logging.FromContext(r.Context()).Warn("adjustment rejected", "error", err)
		RespondDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Idempotent {
		status = http.StatusOK
		w.Header().Set("X-Idempotent-Replayed", "true")
	}
	RespondSuccess(w, status, adjustResponse{
		Wallet:     toWalletResponse(res.Wallet),
		Entry:      toEntryResponse(res.Entry),
		Idempotent: res.Idempotent,
	})
}

func buildAdjustRequest(body adjustRequestBody, key string) (*balance.AdjustRequest, []FieldError) {
	var fields []FieldError

	var selector domain.WalletSelector
	switch {
	case body.WalletID != "":
		id, err := uuid.Parse(body.WalletID)
		if err != nil {
			fields = append(fields, FieldError{Field: "wallet_id", Message: "must be a UUID"})
		} else {
			selector = domain.SelectWalletByID(id)
		}
	case body.OwnerID != "":
		ownerID, err := uuid.Parse(body.OwnerID)
		if err != nil {
			fields = append(fields, FieldError{Field: "owner_id", Message: "must be a UUID"})
		}
		currency := domain.Currency(body.Currency)
		if !currency.IsValid() {
			fields = append(fields, FieldError{Field: "currency", Message: "unsupported currency"})
		}
		if len(fields) == 0 {
			selector = domain.SelectWalletByOwner(ownerID, currency)
		}
	default:
		fields = append(fields, FieldError{Field: "wallet_id", Message: "wallet_id or owner_id+currency required"})
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		fields = append(fields, FieldError{Field: "amount", Message: "must be a decimal string"})
	} else if amount.IsZero() {
		fields = append(fields, FieldError{Field: "amount", Message: "must be non-zero"})
	}

	kind := domain.EntryKind(body.Kind)
	if !kind.IsValid() {
		fields = append(fields, FieldError{Field: "kind", Message: "unknown entry kind"})
	}

	if len(fields) > 0 {
		return nil, fields
	}

	return &balance.AdjustRequest{
		Selector:       selector,
		Delta:          amount,
		Kind:           kind,
		IdempotencyKey: key,
		AllowNegative:  body.AllowNegative,
		Metadata: domain.Metadata{
			Reason: body.Reason,
			Source: body.Source,
		},
	}, nil
}

func toWalletResponse(w *domain.Wallet) walletResponse {
	return walletResponse{
		ID:        w.ID.String(),
		OwnerID:   w.OwnerID.String(),
		Currency:  string(w.Currency),
		Balance:   w.Balance.String(),
		CreatedAt: w.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toEntryResponse(e *domain.LedgerEntry) entryResponse {
	return entryResponse{
		ID:           e.ID.String(),
		WalletID:     e.WalletID.String(),
		Kind:         string(e.Kind),
		Amount:       e.Amount.String(),
		BalanceAfter: e.BalanceAfter.String(),
		Reason:       e.Metadata.Reason,
		Actor:        e.Metadata.Actor,
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
