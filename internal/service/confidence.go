package service

import "github.com/iliyamo/parking-reservation/internal/model"

// Spot confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Status badges shown next to a facility.
const (
	BadgeHighConfidence    = "High Confidence"
	BadgeEnterprise        = "Enterprise Verified"
	BadgeFullyVerified     = "Fully Verified"
	BadgePartiallyVerified = "Partially Verified"
	BadgeAvailableNow      = "Available Now"
)

// FacilityConfidence scores a facility out of 100.  Enterprise sites
// start at 95, everything else at 80; more than 80% verified spots adds
// 5, capped at 100.
func FacilityConfidence(onboarding model.OnboardingType, total, verified int) int {
	base := 80
	if onboarding == model.OnboardingEnterprise {
		base = 95
	}
	if total <= 0 {
		return base
	}
	if verified*100 > 80*total {
		return min(100, base+5)
	}
	return base
}

// SpotConfidence rates a single spot: verified with a bound sensor is
// high, either one alone is medium.
func SpotConfidence(verified, hasSensor bool) string {
	switch {
	case verified && hasSensor:
		return ConfidenceHigh
	case verified || hasSensor:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// StatusBadges lists the badges earned by a facility, in display order.
func StatusBadges(score int, onboarding model.OnboardingType, total, verified, available int) []string {
	badges := []string{}
	if score >= 95 {
		badges = append(badges, BadgeHighConfidence)
	}
	if onboarding == model.OnboardingEnterprise {
		badges = append(badges, BadgeEnterprise)
	}
	if total > 0 {
		switch {
		case verified*100 >= 90*total:
			badges = append(badges, BadgeFullyVerified)
		case verified*100 >= 50*total:
			badges = append(badges, BadgePartiallyVerified)
		}
	}
	if available > 0 {
		badges = append(badges, BadgeAvailableNow)
	}
	return badges
}
