package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Lebim01/dotacasino-api-sub001/internal/domain"
	"github.com/Lebim01/dotacasino-api-sub001/internal/fx"
	"github.com/Lebim01/dotacasino-api-sub001/internal/logging"
)

type rateProvider interface {
	GetDailyRates(ctx context.Context) (fx.Snapshot, error)
}

type FXHandler struct {
	rates rateProvider
}

func NewFXHandler(rates rateProvider) *FXHandler {
	return &FXHandler{rates: rates}
}

type fxConvertResponse struct {
	Amount    string `json:"amount"`
	From      string `json:"from"`
	To        string `json:"to"`
	Result    string `json:"result"`
	Reference string `json:"reference"`
}

// Convert bridges an amount between two currencies using today's rate
// snapshot. The conversion itself is pure; this endpoint just supplies
// the snapshot.
func (h *FXHandler) Convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fields []FieldError
	from := domain.Currency(q.Get("from"))
	if !from.IsValid() {
		fields = append(fields, FieldError{Field: "from", Message: "unsupported currency"})
	}
	to := domain.Currency(q.Get("to"))
	if !to.IsValid() {
		fields = append(fields, FieldError{Field: "to", Message: "unsupported currency"})
	}
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		fields = append(fields, FieldError{Field: "amount", Message: "must be a decimal string"})
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	snapshot, err := h.rates.GetDailyRates(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("rate snapshot unavailable", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	var result decimal.Decimal
	if raw := q.Get("decimals"); raw != "" {
		decimals, convErr := strconv.ParseInt(raw, 10, 32)
		if convErr != nil || decimals < 0 || decimals > 8 {
			RespondValidationError(w, []FieldError{{Field: "decimals", Message: "must be an integer 0-8"}})
			return
		}
		result, err = fx.ConvertRounded(amount, from, to, snapshot, int32(decimals))
	} else {
		result, err = fx.Convert(amount, from, to, snapshot)
	}
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, fxConvertResponse{
		Amount:    amount.String(),
		From:      string(from),
		To:        string(to),
		Result:    result.String(),
		Reference: string(snapshot.Reference),
	})
}
