package model

import "time"

// OnboardingType classifies how a facility joined the platform.  It
// decides whether bookings there are reserved directly or must be
// approved by the facility owner first.
type OnboardingType string

const (
	OnboardingEnterprise OnboardingType = "enterprise"
	OnboardingSmall      OnboardingType = "small"
	OnboardingP2P        OnboardingType = "p2p"
)

// Facility is a parking location.  Floors and spots hang off it.  The
// booking core only reads facilities; they are managed elsewhere.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – display name, also used in barrier redirect messages.
//  Kind           – mall, office or lot.
//  OnboardingType – enterprise, small or p2p.
//  OwnerID        – owning user for p2p facilities (nil otherwise).
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Facility struct {
	ID             uint64         // facilities.id
	Name           string         // facilities.name
	Kind           string         // facilities.kind
	OnboardingType OnboardingType // facilities.onboarding_type
	OwnerID        *uint64        // facilities.owner_id (nullable)
	CreatedAt      time.Time      // facilities.created_at
	UpdatedAt      time.Time      // facilities.updated_at
}

// Floor is a level inside a facility.  Labels such as B1 or P2 are
// unique per facility.
type Floor struct {
	ID         uint64 // floors.id
	FacilityID uint64 // floors.facility_id
	Label      string // floors.label
}

// FacilityStats summarises spot inventory for one facility.
type FacilityStats struct {
	FacilityID       uint64   `json:"facility_id"`
	TotalSpots       int      `json:"total_spots"`
	Available        int      `json:"available"`
	Occupied         int      `json:"occupied"`
	Reserved         int      `json:"reserved"`
	Verified         int      `json:"verified"`
	VerificationRate float64  `json:"verification_rate"`
	ConfidenceScore  int      `json:"confidence_score"`
	Badges           []string `json:"badges"`
}
