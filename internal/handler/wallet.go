package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/Lebim01/dotacasino-api-sub001/internal/domain"
)

type walletReader interface {
	GetWallet(ctx context.Context, sel domain.WalletSelector) (*domain.Wallet, error)
	GetOwnerWallets(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error)
	ListEntries(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
}

type WalletHandler struct {
	balances walletReader
}

func NewWalletHandler(balances walletReader) *WalletHandler {
	return &WalletHandler{balances: balances}
}

// List returns all wallets of an owner, or the single (owner, currency)
// wallet when currency is given. Balances read here are for display;
// policy decisions happen inside the adjustment path only.
func (h *WalletHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, err := uuid.Parse(r.URL.Query().Get("owner_id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "owner_id", Message: "must be a UUID"}})
		return
	}

	if currency := r.URL.Query().Get("currency"); currency != "" {
		wallet, err := h.balances.GetWallet(r.Context(), domain.SelectWalletByOwner(ownerID, domain.Currency(currency)))
		if err != nil {
			RespondDomainError(w, err)
			return
		}
		RespondSuccess(w, http.StatusOK, toWalletResponse(wallet))
		return
	}

	wallets, err := h.balances.GetOwnerWallets(r.Context(), ownerID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]walletResponse, 0, len(wallets))
	for i := range wallets {
		out = append(out, toWalletResponse(&wallets[i]))
	}
	RespondSuccess(w, http.StatusOK, out)
}

type ledgerPageResponse struct {
	Entries []entryResponse `json:"entries"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

func (h *WalletHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a UUID"}})
		return
	}

	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)
	if limit < 1 || limit > 500 || offset < 0 {
		RespondValidationError(w, []FieldError{{Field: "limit", Message: "limit must be 1-500, offset >= 0"}})
		return
	}

	entries, total, err := h.balances.ListEntries(r.Context(), walletID, limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	page := ledgerPageResponse{
		Entries: make([]entryResponse, 0, len(entries)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}
	for i := range entries {
		page.Entries = append(page.Entries, toEntryResponse(&entries[i]))
	}
	RespondSuccess(w, http.StatusOK, page)
}

func parseIntQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
