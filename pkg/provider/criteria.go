package provider

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are tried in order for free-form date input. Slash and dash
// separated forms never reach this list; NormalizeDate handles those in
// dedicated branches, so only layouts without either separator belong here.
var dateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
}

// NormalizeDate converts a date string to canonical YYYY-MM-DD form. Slash
// separated input is read as MM/DD/YYYY; dash separated input is assumed
// canonical already; anything else is parsed against a set of known layouts.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}

	if strings.Contains(s, "/") {
		t, err := time.Parse("1/2/2006", s)
		if err != nil {
			return "", fmt.Errorf("parse date %q: %w", s, err)
		}
		return t.Format("2006-01-02"), nil
	}

	if strings.Contains(s, "-") {
		// Validate rather than trust: reject things like 2024-13-40.
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t.Format("2006-01-02"), nil
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
		return "", fmt.Errorf("parse date %q: unrecognized dashed format", s)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("parse date %q: unrecognized format", s)
}

// Normalize returns a copy of the criteria with both dates in canonical form.
func (c SearchCriteria) Normalize() (SearchCriteria, error) {
	checkin, err := NormalizeDate(c.CheckIn)
	if err != nil {
		return c, &ValidationError{Field: "checkin", Reason: err.Error()}
	}
	checkout, err := NormalizeDate(c.CheckOut)
	if err != nil {
		return c, &ValidationError{Field: "checkout", Reason: err.Error()}
	}
	c.CheckIn = checkin
	c.CheckOut = checkout
	return c, nil
}

// Validate checks the criteria before any provider call. A failure here is
// fatal for the session; nothing is dispatched.
func (c SearchCriteria) Validate() error {
	if c.CheckIn == "" {
		return &ValidationError{Field: "checkin", Reason: "required"}
	}
	if c.CheckOut == "" {
		return &ValidationError{Field: "checkout", Reason: "required"}
	}
	if c.RegionID == 0 && len(c.HotelIDs) == 0 {
		return &ValidationError{Field: "region_id", Reason: "either region_id or ids is required"}
	}
	if c.RegionID != 0 && len(c.HotelIDs) > 0 {
		return &ValidationError{Field: "region_id", Reason: "region_id and ids are mutually exclusive"}
	}
	if len(c.Guests) == 0 {
		return &ValidationError{Field: "guests", Reason: "at least one guest group is required"}
	}
	for i, g := range c.Guests {
		if g.Adults <= 0 {
			return &ValidationError{
				Field:  fmt.Sprintf("guests[%d].adults", i),
				Reason: "must be a positive integer",
			}
		}
	}
	return nil
}
