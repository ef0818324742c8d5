package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPendingApproval BookingStatus = "pending_approval"
	BookingReserved        BookingStatus = "reserved"
	BookingActive          BookingStatus = "active"
	BookingCompleted       BookingStatus = "completed"
	BookingCancelled       BookingStatus = "cancelled"
	BookingRejected        BookingStatus = "rejected"
)

// NonTerminalStatuses block a spot for their interval.
var NonTerminalStatuses = []BookingStatus{BookingPendingApproval, BookingReserved, BookingActive}

// HoldingStatuses grant access to the spot during the booking window.
var HoldingStatuses = []BookingStatus{BookingReserved, BookingActive}

// AllowedTransitions lists which status pairs are structurally valid.
// Who may trigger each edge (host, requester, admin, system) is checked
// by the service layer.
var AllowedTransitions = map[BookingStatus][]BookingStatus{
	BookingPendingApproval: {BookingReserved, BookingRejected},
	BookingReserved:        {BookingCancelled, BookingCompleted},
	BookingActive:          {BookingCancelled, BookingCompleted},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range AllowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is completed, cancelled or rejected.
func (s BookingStatus) IsTerminal() bool {
	return !s.IsNonTerminal()
}

// IsNonTerminal reports whether the status still blocks the spot.
func (s BookingStatus) IsNonTerminal() bool {
	for _, st := range NonTerminalStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsHolding reports whether the status is reserved or active.
func (s BookingStatus) IsHolding() bool {
	return s == BookingReserved || s == BookingActive
}

// Booking reserves one spot for a half-open interval [StartTime, EndTime).
// Bookings are never deleted; terminal ones remain as an audit record.
//
// Fields:
//  ID              – primary key identifier.
//  SpotID          – reserved spot.
//  UserID          – requester.
//  StartTime       – inclusive start (UTC).
//  EndTime         – exclusive end (UTC).
//  Status          – lifecycle state.
//  AccessCode      – six character entry code, unique across all bookings.
//  HostID          – facility owner who must approve (p2p only).
//  RejectionReason – set only when the host rejected the booking.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Booking struct {
	ID              uint64        // bookings.id
	SpotID          uint64        // bookings.spot_id
	UserID          uint64        // bookings.user_id
	StartTime       time.Time     // bookings.start_time
	EndTime         time.Time     // bookings.end_time
	Status          BookingStatus // bookings.status
	AccessCode      string        // bookings.access_code
	HostID          *uint64       // bookings.host_user_id (nullable)
	RejectionReason *string       // bookings.rejection_reason (nullable)
	CreatedAt       time.Time     // bookings.created_at
	UpdatedAt       time.Time     // bookings.updated_at
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// share at least one instant.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// InWindow reports whether now falls inside [StartTime, EndTime).
func (b Booking) InWindow(now time.Time) bool {
	return !now.Before(b.StartTime) && now.Before(b.EndTime)
}

// EffectiveStatus returns the status as seen at now.  A reserved
// booking whose window is open reads as active; nothing persists the
// active state.
func (b Booking) EffectiveStatus(now time.Time) BookingStatus {
	if b.Status == BookingReserved && b.InWindow(now) {
		return BookingActive
	}
	return b.Status
}

// IsHost reports whether userID is the recorded host of the booking.
func (b Booking) IsHost(userID uint64) bool {
	return b.HostID != nil && *b.HostID == userID
}

// DurationHours is the length of the booking window in hours.
func (b Booking) DurationHours() float64 {
	return b.EndTime.Sub(b.StartTime).Hours()
}
