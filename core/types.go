package core

// Currency codes accepted on monetary rows.
const (
	CurrencyCRC = "CRC"
	CurrencyUSD = "USD"
)

// Line is the monetary view of any priced row (tender line, offered line,
// awarded line, contracted line) handed to ComputeLineAmount.
type Line struct {
	TotalAmount  float64 `json:"total_amount,omitempty"`
	UnitPrice    float64 `json:"unit_price"`
	Quantity     float64 `json:"quantity"`
	Discount     float64 `json:"discount,omitempty"`
	Tax          float64 `json:"tax,omitempty"`
	OtherTaxes   float64 `json:"other_taxes,omitempty"`
	Freight      float64 `json:"freight,omitempty"`
	Currency     string  `json:"currency"`
	ExchangeRate float64 `json:"exchange_rate,omitempty"`
}

// ProviderTotal accumulates one provider's share of a scope.
type ProviderTotal struct {
	ProviderID    string  `json:"provider_id"`
	Name          string  `json:"name"`
	MatchStrategy string  `json:"match_strategy,omitempty"`
	Unresolved    bool    `json:"unresolved,omitempty"`
	Amount        float64 `json:"amount"`
	Count         int     `json:"count"`
}

// ProviderRanking contains ranked providers and their rank positions.
type ProviderRanking struct {
	Ranks  map[string]int  `json:"ranks"`
	Sorted []ProviderTotal `json:"sorted"`
}
