// Package engine classifies Buy Box ownership transitions. It is pure:
// no clock, no database, no network. The orchestrator feeds it the
// previous persisted status and a freshly reduced snapshot, and applies
// whatever effects it reports.
package engine

import (
	"time"

	"appproft-buybox-sync/internal/model"
)

// SellerIdentity is the tracked seller whose Buy Box ownership we defend.
type SellerIdentity struct {
	ID   string
	Name string
}

// AlertEffect tells the caller what to do with hijack alerts for the item.
type AlertEffect int

const (
	// AlertNone leaves alerts untouched.
	AlertNone AlertEffect = iota
	// AlertOpen opens an alert for (item, new owner) unless one is
	// already active for that exact pair.
	AlertOpen
	// AlertResolveAll resolves every active alert for the item.
	AlertResolveAll
)

// Result is the outcome of diffing one snapshot against persisted state.
type Result struct {
	Status     model.BuyBoxStatus
	Transition *model.BuyBoxTransition // nil when ownership did not change
	Alert      AlertEffect
}

// Reduce collapses an offer snapshot to the fields ownership tracking
// depends on. Only typed offer fields are consulted, never the
// side-channel map.
func Reduce(self SellerIdentity, ownPrice float64, snap *model.OfferSnapshot) model.BuyBoxStatus {
	status := model.BuyBoxStatus{
		ASIN:          snap.ASIN,
		OwnPrice:      ownPrice,
		LastCheckedAt: snap.CollectedAt,
	}

	for i := range snap.Offers {
		offer := &snap.Offers[i]
		if offer.SellerID != self.ID {
			status.CompetitorCount++
		}
		if !offer.IsBuyBoxWinner {
			continue
		}
		status.OwnerID = offer.SellerID
		status.OwnerName = offer.SellerName
		status.BuyBoxPrice = offer.Price
		if offer.SellerID == self.ID {
			status.IsOwner = true
			status.OwnerName = self.Name
		}
	}

	return status
}

// Diff compares the previous persisted status with a reduced snapshot
// and classifies the transition.
//
// A snapshot that changes nothing produces no transition and no alert
// effect; the caller only refreshes last_checked_at. A failed fetch
// never reaches this function, so persisted state always reflects the
// most recent successful observation.
func Diff(prev *model.BuyBoxStatus, next model.BuyBoxStatus, at time.Time) Result {
	res := Result{Status: next, Alert: AlertNone}

	if prev == nil {
		res.Transition = &model.BuyBoxTransition{
			ASIN:       next.ASIN,
			Kind:       model.TransitionDiscovered,
			NewOwner:   next.OwnerID,
			NewPrice:   next.BuyBoxPrice,
			OccurredAt: at,
		}
		return res
	}

	// last_checked_at must never move backwards.
	if next.LastCheckedAt.Before(prev.LastCheckedAt) {
		res.Status.LastCheckedAt = prev.LastCheckedAt
	}

	var kind model.TransitionKind
	switch {
	case prev.IsOwner && !next.IsOwner:
		kind = model.TransitionLost
		if next.OwnerID != "" {
			res.Alert = AlertOpen
		}
	case !prev.IsOwner && next.IsOwner:
		kind = model.TransitionWon
		res.Alert = AlertResolveAll
	case !prev.IsOwner && !next.IsOwner && prev.OwnerID != next.OwnerID:
		kind = model.TransitionChanged
	default:
		return res
	}

	res.Transition = &model.BuyBoxTransition{
		ASIN:          next.ASIN,
		Kind:          kind,
		PreviousOwner: prev.OwnerID,
		NewOwner:      next.OwnerID,
		PreviousPrice: prev.BuyBoxPrice,
		NewPrice:      next.BuyBoxPrice,
		OccurredAt:    at,
	}
	return res
}
