package model

import "time"

// SpotStatus is the physical/inventory status of a spot.
type SpotStatus string

const (
	SpotAvailable SpotStatus = "available"
	SpotOccupied  SpotStatus = "occupied"
	SpotReserved  SpotStatus = "reserved"
	SpotBlocked   SpotStatus = "blocked"
)

// Spot is a single allocatable parking unit.  Spots are uniquely
// identified by their floor and code.  DistanceFromEntry drives
// allocation priority: lower values are handed out first.
//
// Fields:
//  ID                – primary key identifier.
//  FloorID           – floor containing the spot.
//  FacilityID        – facility of the floor (denormalised for lookups).
//  Code              – spot code, e.g. A-101.
//  X, Y              – display coordinates on the floorplan.
//  Status            – available, occupied, reserved or blocked.
//  Verified          – whether an installer verified the spot.
//  DistanceFromEntry – metres from the entrance.
type Spot struct {
	ID                uint64     // spots.id
	FloorID           uint64     // spots.floor_id
	FacilityID        uint64     // floors.facility_id
	Code              string     // spots.code
	X                 float64    // spots.x
	Y                 float64    // spots.y
	Status            SpotStatus // spots.status
	Verified          bool       // spots.verified
	DistanceFromEntry int        // spots.distance_from_entry
	CreatedAt         time.Time  // spots.created_at
	UpdatedAt         time.Time  // spots.updated_at
}

// SpotLocation is the denormalised location of a spot used in
// validation responses.
type SpotLocation struct {
	SpotID       uint64
	SpotCode     string
	FloorLabel   string
	FacilityID   uint64
	FacilityName string
}

// SpotSummary is the public view of a spot in a facility listing.
// HasSensor reports whether an occupancy sensor is bound to the spot.
type SpotSummary struct {
	ID                uint64     `json:"id"`
	Code              string     `json:"code"`
	Floor             string     `json:"floor"`
	Status            SpotStatus `json:"status"`
	Verified          bool       `json:"verified"`
	DistanceFromEntry int        `json:"distance_from_entry"`
	HasSensor         bool       `json:"has_sensor"`
	Confidence        string     `json:"confidence"`
}
