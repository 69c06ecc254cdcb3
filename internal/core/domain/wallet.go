package domain

// WalletRef describes a treasury wallet reported by a source. Wallets are
// unioned across sources by address, never merged.
type WalletRef struct {
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
	ChainID int    `json:"chainId,omitempty"`
}
