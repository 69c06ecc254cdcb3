package domain

import "time"

// NftAsset is a single NFT held by a treasury wallet. Rows are long-lived
// and upserted by (ContractAddress, TokenID) as fresh data arrives,
// independent of snapshot generation.
type NftAsset struct {
	ID                string    `json:"id,omitempty"`
	ContractAddress   string    `json:"contractAddress"`
	TokenID           string    `json:"tokenId"`
	Collection        string    `json:"collection"`
	Image             string    `json:"image,omitempty"`
	FloorPrice        float64   `json:"floorPrice,omitempty"`
	EstimatedValueUsd float64   `json:"estimatedValueUsd,omitempty"`
	LastUpdated       time.Time `json:"lastUpdated,omitempty"`
}
