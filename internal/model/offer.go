package model

import "time"

// Fulfillment channels reported by the pricing API.
const (
	FulfillmentAmazon   = "AMAZON"
	FulfillmentMerchant = "MERCHANT"
)

// CompetitorOffer is one competing offer for an ASIN at collection time.
type CompetitorOffer struct {
	ASIN            string    `json:"asin"`
	SellerID        string    `json:"seller_id"`
	SellerName      string    `json:"seller_name"`
	Price           float64   `json:"price"`
	ShippingCost    float64   `json:"shipping_cost"`
	FulfillmentType string    `json:"fulfillment_type"`
	IsBuyBoxWinner  bool      `json:"is_buy_box_winner"`
	Condition       string    `json:"condition"`
	FeedbackRating  float64   `json:"feedback_rating"`
	FeedbackCount   int       `json:"feedback_count"`
	CollectedAt     time.Time `json:"collected_at"`

	// Extra holds upstream fields we do not model. Kept for forward
	// compatibility only; business logic must never read from it.
	Extra map[string]any `json:"-"`
}

// Landed returns price plus shipping, the amount the buyer actually pays.
func (o *CompetitorOffer) Landed() float64 {
	return o.Price + o.ShippingCost
}

// OfferSnapshot is the full competing-offer set for one ASIN at one
// point in time.
type OfferSnapshot struct {
	ASIN        string            `json:"asin"`
	Offers      []CompetitorOffer `json:"offers"`
	CollectedAt time.Time         `json:"collected_at"`
}

// Winner returns the offer currently holding the Buy Box, or nil.
func (s *OfferSnapshot) Winner() *CompetitorOffer {
	for i := range s.Offers {
		if s.Offers[i].IsBuyBoxWinner {
			return &s.Offers[i]
		}
	}
	return nil
}
