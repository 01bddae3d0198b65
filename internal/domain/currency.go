package domain

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyMXN Currency = "MXN"
	CurrencyCOP Currency = "COP"
	CurrencyBRL Currency = "BRL"
)

// ReferenceCurrency is the bridge currency for all cross-currency
// conversions; its rate is 1 by definition.
const ReferenceCurrency = CurrencyUSD

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyMXN, CurrencyCOP, CurrencyBRL:
		return true
	}
	return false
}
