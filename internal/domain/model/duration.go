package model

import (
	"strings"
	"time"

	"telegram-group-paywall/internal/domain"
)

// DurationTier is the billing period a payment buys.
type DurationTier string

const (
	DurationMonthly   DurationTier = "monthly"
	DurationQuarterly DurationTier = "quarterly"
	DurationBiannual  DurationTier = "biannual"
	DurationAnnual    DurationTier = "annual"
)

var tierDays = map[DurationTier]int{
	DurationMonthly:   30,
	DurationQuarterly: 90,
	DurationBiannual:  180,
	DurationAnnual:    365,
}

// ParseDurationTier accepts the canonical names plus the "biannually"/"annually"
// spellings still present in older payment rows.
func ParseDurationTier(s string) (DurationTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly":
		return DurationMonthly, nil
	case "quarterly":
		return DurationQuarterly, nil
	case "biannual", "biannually":
		return DurationBiannual, nil
	case "annual", "annually", "yearly":
		return DurationAnnual, nil
	}
	return "", domain.ErrInvalidArgument
}

func (d DurationTier) Valid() bool {
	_, ok := tierDays[d]
	return ok
}

// Days is the fixed offset in days; 0 for unknown tiers.
func (d DurationTier) Days() int { return tierDays[d] }

// ExpiryFrom returns paidAt + the tier offset.
func (d DurationTier) ExpiryFrom(paidAt time.Time) (time.Time, bool) {
	days, ok := tierDays[d]
	if !ok {
		return time.Time{}, false
	}
	return paidAt.AddDate(0, 0, days), true
}
