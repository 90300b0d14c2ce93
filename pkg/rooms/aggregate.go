// Package rooms collapses the provider's flat room-rate line items into a
// canonical per-room-type offer matrix with up to four priced variants
// (meal/no-meal x refundable/non-refundable). Pure, no I/O.
package rooms

import (
	"sort"
	"strings"

	"github.com/stayscout/ota-client/pkg/provider"
)

// Cancellation labels shown to users.
const (
	LabelNoRefund      = "No Refund"
	LabelPartialRefund = "Partial Refund"
)

// Variant is one priced option of an offer.
type Variant struct {
	Price        float64
	Amenities    []string
	MiscRoom     string
	Meal         string
	Cancellation string
	Refundable   bool
}

// Offer is the de-duplicated room record shown to users. BaseVariant (no
// meal, non-refundable) is always present; the other three are optional.
type Offer struct {
	Name string
	Type string

	// BaseVariant is the mandatory no-meal/non-refundable price. The first
	// line item seen for a key seeds it regardless of its actual flags.
	BaseVariant Variant

	MealVariant       *Variant
	RefundVariant     *Variant
	MealRefundVariant *Variant

	RoomData provider.RoomDataTrans
}

// Key is the composite identity used to merge line items describing the same
// physical room.
type Key struct {
	MainRoomType string
	MainName     string
	Bathroom     string
	BeddingType  string
	MiscSorted   string
}

// KeyOf computes the room key for a line item. Misc qualifier tokens are
// sorted before joining so the key is insensitive to the provider's token
// order.
func KeyOf(item *provider.RateLineItem) Key {
	rd := item.RoomDataTrans
	return Key{
		MainRoomType: rd.MainRoomType,
		MainName:     rd.MainName,
		Bathroom:     rd.Bathroom,
		BeddingType:  rd.BeddingType,
		MiscSorted:   sortMisc(rd.MiscRoomType),
	}
}

// sortMisc normalizes a comma separated qualifier string.
func sortMisc(misc string) string {
	if misc == "" {
		return ""
	}
	tokens := strings.Split(misc, ", ")
	sort.Strings(tokens)
	return strings.Join(tokens, ", ")
}

// Refundable reports whether a line item admits any refund: a cancellation
// policy must exist and its first penalty tier must charge something other
// than the full daily price. No policy data means non-refundable.
func Refundable(item *provider.RateLineItem) bool {
	pts := item.PaymentOptions.PaymentTypes
	if len(pts) == 0 || pts[0].CancellationPenalties == nil {
		return false
	}
	policies := pts[0].CancellationPenalties.Policies
	if len(policies) == 0 {
		return false
	}
	if len(item.DailyPrices) == 0 {
		return false
	}
	return policies[0].AmountCharge != item.DailyPrices[0]
}

// Aggregate folds line items into at most one Offer per room key, in
// first-seen key order. Single pass, O(len(items)); deterministic for a
// given input.
func Aggregate(items []provider.RateLineItem) []Offer {
	byKey := make(map[Key]*Offer, len(items))
	var order []Key

	for i := range items {
		item := &items[i]
		refundable := Refundable(item)

		variant := Variant{
			Price:      item.DailyPrice(),
			Amenities:  item.AmenitiesData,
			MiscRoom:   item.RoomDataTrans.MiscRoomType,
			Meal:       item.Meal,
			Refundable: refundable,
		}
		if refundable {
			variant.Cancellation = LabelPartialRefund
		} else {
			variant.Cancellation = LabelNoRefund
		}

		key := KeyOf(item)
		offer, seen := byKey[key]
		if !seen {
			// First sighting seeds the baseline slot whatever the flags say.
			byKey[key] = &Offer{
				Name:        item.RoomName,
				Type:        strings.TrimSpace(item.RoomDataTrans.MainName),
				BaseVariant: variant,
				RoomData:    item.RoomDataTrans,
			}
			order = append(order, key)
			continue
		}

		meal := item.MealIncluded()
		switch {
		case meal && !refundable:
			offer.MealVariant = &variant
		case !meal && refundable:
			offer.RefundVariant = &variant
		case meal && refundable:
			offer.MealRefundVariant = &variant
		default:
			// no meal, non-refundable: replaces the baseline (last write wins).
			offer.BaseVariant = variant
		}
	}

	out := make([]Offer, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// Pick returns the variant matching a meal/refund selection, falling back to
// the baseline when that combination was not offered.
func (o *Offer) Pick(withMeal, withRefund bool) Variant {
	switch {
	case withMeal && withRefund && o.MealRefundVariant != nil:
		return *o.MealRefundVariant
	case withMeal && !withRefund && o.MealVariant != nil:
		return *o.MealVariant
	case !withMeal && withRefund && o.RefundVariant != nil:
		return *o.RefundVariant
	default:
		return o.BaseVariant
	}
}
