package provider

import (
	"strconv"
	"strings"
)

// GuestGroup describes the occupants of one requested room.
type GuestGroup struct {
	Adults   int   `json:"adults"`
	Children []int `json:"children"`
}

// SearchCriteria is the shared request body for search and detail endpoints.
// Dates are normalized to YYYY-MM-DD before any request is issued.
type SearchCriteria struct {
	CheckIn   string       `json:"checkin"`
	CheckOut  string       `json:"checkout"`
	Residency string       `json:"residency"`
	Language  string       `json:"language"`
	Guests    []GuestGroup `json:"guests"`
	Currency  string       `json:"currency"`

	// RegionID targets a broad region search. Zero when HotelIDs is set.
	RegionID int64 `json:"region_id,omitempty"`

	// HotelIDs targets an explicit detail batch instead of a region.
	HotelIDs []string `json:"ids,omitempty"`
}

// HotelStub is a search hit: identifier plus the first daily rate observed.
// Read-only once created.
type HotelStub struct {
	ID    string
	Price float64
}

// RoomDataTrans holds the provider's structural room attributes.
type RoomDataTrans struct {
	MainRoomType string `json:"main_room_type"`
	MainName     string `json:"main_name"`
	Bathroom     string `json:"bathroom"`
	BeddingType  string `json:"bedding_type"`
	MiscRoomType string `json:"misc_room_type"`
}

// PenaltyPolicy is one cancellation penalty tier.
type PenaltyPolicy struct {
	StartAt      string `json:"start_at"`
	EndAt        string `json:"end_at"`
	AmountCharge string `json:"amount_charge"`
	AmountShow   string `json:"amount_show"`
}

// CancellationPenalties wraps the provider's penalty tier list.
type CancellationPenalties struct {
	Policies []PenaltyPolicy `json:"policies"`
}

// PaymentType is one accepted payment option with its cancellation terms.
type PaymentType struct {
	Type                  string                 `json:"type"`
	Amount                string                 `json:"amount"`
	CurrencyCode          string                 `json:"currency_code"`
	CancellationPenalties *CancellationPenalties `json:"cancellation_penalties"`
}

// PaymentOptions wraps the payment type list.
type PaymentOptions struct {
	PaymentTypes []PaymentType `json:"payment_types"`
}

// RateLineItem is one priced room offer as returned by the room-rate endpoint,
// prior to aggregation.
type RateLineItem struct {
	RoomName       string         `json:"room_name"`
	Meal           string         `json:"meal"`
	DailyPrices    []string       `json:"daily_prices"`
	AmenitiesData  []string       `json:"amenities_data"`
	RoomDataTrans  RoomDataTrans  `json:"room_data_trans"`
	PaymentOptions PaymentOptions `json:"payment_options"`
}

// DailyPrice returns the first daily price as a float. The provider encodes
// prices as decimal strings.
func (r *RateLineItem) DailyPrice() float64 {
	if len(r.DailyPrices) == 0 {
		return 0
	}
	p, err := strconv.ParseFloat(strings.TrimSpace(r.DailyPrices[0]), 64)
	if err != nil {
		return 0
	}
	return p
}

// MealIncluded reports whether the rate includes breakfast. The provider uses
// the literal meal code "breakfast" for included meals.
func (r *RateLineItem) MealIncluded() bool {
	return r.Meal == "breakfast"
}

// RGExt holds the numeric structural classification of a room group.
type RGExt struct {
	Class    int `json:"class"`
	Quality  int `json:"quality"`
	Bathroom int `json:"bathroom"`
	Bedding  int `json:"bedding"`
	Capacity int `json:"capacity"`
}

// NameStruct is the provider's decomposed room group name.
type NameStruct struct {
	MainName string `json:"main_name"`
}

// RoomGroup is one physical room type of a hotel with its images and
// structural attributes.
type RoomGroup struct {
	RoomGroupID int64      `json:"room_group_id"`
	NameStruct  NameStruct `json:"name_struct"`
	Images      []string   `json:"images"`
	RGExt       RGExt      `json:"rg_ext"`
}

// AmenityGroup is one named group of hotel amenities.
type AmenityGroup struct {
	GroupName string   `json:"group_name"`
	Amenities []string `json:"amenities"`
}

// DescriptionBlock is one titled block of description paragraphs.
type DescriptionBlock struct {
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
}

// HotelInfo is the static hotel record from the hotel info endpoint.
type HotelInfo struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Address           string             `json:"address"`
	StarRating        int                `json:"star_rating"`
	AmenityGroups     []AmenityGroup     `json:"amenity_groups"`
	Images            []string           `json:"images"`
	DescriptionStruct []DescriptionBlock `json:"description_struct"`
	RoomGroups        []RoomGroup        `json:"room_groups"`
}

// FlatAmenities returns all amenities across groups in group order.
func (h *HotelInfo) FlatAmenities() []string {
	var out []string
	for _, g := range h.AmenityGroups {
		out = append(out, g.Amenities...)
	}
	return out
}

// FlatDescription joins all description paragraphs for display, blocks
// separated by blank lines.
func (h *HotelInfo) FlatDescription() string {
	parts := make([]string, 0, len(h.DescriptionStruct))
	for _, b := range h.DescriptionStruct {
		parts = append(parts, strings.Join(b.Paragraphs, " "))
	}
	return strings.Join(parts, "\n\n")
}

// RatedHotel is one hotel entry from the room-rate endpoint: the flat rate
// list plus the room groups needed to join names to images.
type RatedHotel struct {
	ID         string         `json:"id"`
	Rates      []RateLineItem `json:"rates"`
	RoomGroups []RoomGroup    `json:"room_groups"`
}

// Wire envelopes. The provider wraps every response body in a "data" object.

type serpHotel struct {
	ID    string `json:"id"`
	Rates []struct {
		DailyPrices []string `json:"daily_prices"`
	} `json:"rates"`
}

type serpResponse struct {
	Data struct {
		Hotels []serpHotel `json:"hotels"`
	} `json:"data"`
}

type ratesResponse struct {
	Data struct {
		Hotels []RatedHotel `json:"hotels"`
	} `json:"data"`
}

type infoResponse struct {
	Data HotelInfo `json:"data"`
}

type infoBatchResponse struct {
	Data struct {
		Hotels []HotelInfo `json:"hotels"`
	} `json:"data"`
}
