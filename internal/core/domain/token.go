package domain

// TokenBalance is a single fungible token position as reported by a source
// or resolved by the merge engine.
type TokenBalance struct {
	Symbol   string     `json:"symbol"`
	Name     string     `json:"name,omitempty"`
	Amount   float64    `json:"amount"`
	UsdPrice float64    `json:"usdPrice,omitempty"`
	UsdValue float64    `json:"usdValue"`
	Source   SourceKind `json:"source"`
}
