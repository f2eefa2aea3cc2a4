package model

import "time"

// MarketplaceCredential is the long-lived refresh credential for one
// marketplace. The refresh token is encrypted before it reaches storage;
// the access token lives only in the token manager's memory.
type MarketplaceCredential struct {
	Marketplace  string    `json:"marketplace"`
	SellerID     string    `json:"seller_id"`
	RefreshToken string    `json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`
}
