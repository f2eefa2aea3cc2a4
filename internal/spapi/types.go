package spapi

import (
	"encoding/json"
	"time"

	"appproft-buybox-sync/internal/model"
)

// offersResponse is the getItemOffers response envelope.
type offersResponse struct {
	Payload offersPayload `json:"payload"`
}

type offersPayload struct {
	ASIN   string            `json:"ASIN"`
	Offers []json.RawMessage `json:"Offers"`
}

// moneyAmount is a price field as the pricing API reports it.
type moneyAmount struct {
	CurrencyCode string  `json:"CurrencyCode"`
	Amount       float64 `json:"Amount"`
}

// wireOffer mirrors the typed fields of one offer. Everything else the
// endpoint sends lands in the side-channel map.
type wireOffer struct {
	SellerID             string       `json:"SellerId"`
	SellerName           string       `json:"SellerName"`
	ListingPrice         moneyAmount  `json:"ListingPrice"`
	Shipping             moneyAmount  `json:"Shipping"`
	IsBuyBoxWinner       bool         `json:"IsBuyBoxWinner"`
	IsFulfilledByAmazon  bool         `json:"IsFulfilledByAmazon"`
	SubCondition         string       `json:"SubCondition"`
	SellerFeedbackRating *wireRating  `json:"SellerFeedbackRating"`
}

type wireRating struct {
	PositiveFeedbackRating float64 `json:"SellerPositiveFeedbackRating"`
	FeedbackCount          int     `json:"FeedbackCount"`
}

// wireOfferKnownKeys lists the JSON keys the typed struct consumes.
var wireOfferKnownKeys = map[string]struct{}{
	"SellerId":             {},
	"SellerName":           {},
	"ListingPrice":         {},
	"Shipping":             {},
	"IsBuyBoxWinner":       {},
	"IsFulfilledByAmazon":  {},
	"SubCondition":         {},
	"SellerFeedbackRating": {},
}

// decodeOffer parses one raw offer into the typed model, stashing
// unrecognized upstream keys in Extra for forward compatibility.
func decodeOffer(asin string, raw json.RawMessage, collectedAt time.Time) (model.CompetitorOffer, error) {
	var w wireOffer
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.CompetitorOffer{}, err
	}

	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return model.CompetitorOffer{}, err
	}
	extra := make(map[string]any)
	for k, v := range all {
		if _, known := wireOfferKnownKeys[k]; !known {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		extra = nil
	}

	fulfillment := model.FulfillmentMerchant
	if w.IsFulfilledByAmazon {
		fulfillment = model.FulfillmentAmazon
	}

	offer := model.CompetitorOffer{
		ASIN:            asin,
		SellerID:        w.SellerID,
		SellerName:      w.SellerName,
		Price:           w.ListingPrice.Amount,
		ShippingCost:    w.Shipping.Amount,
		FulfillmentType: fulfillment,
		IsBuyBoxWinner:  w.IsBuyBoxWinner,
		Condition:       w.SubCondition,
		CollectedAt:     collectedAt,
		Extra:           extra,
	}
	if w.SellerFeedbackRating != nil {
		offer.FeedbackRating = w.SellerFeedbackRating.PositiveFeedbackRating
		offer.FeedbackCount = w.SellerFeedbackRating.FeedbackCount
	}
	return offer, nil
}
