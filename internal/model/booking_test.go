package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h := time.Hour

	tests := []struct {
		name   string
		s1, e1 time.Time
		s2, e2 time.Time
		want   bool
	}{
		{"identical", base, base.Add(h), base, base.Add(h), true},
		{"contained", base, base.Add(2 * h), base.Add(h / 2), base.Add(h), true},
		{"partial left", base, base.Add(h), base.Add(-h / 2), base.Add(h / 2), true},
		{"touching end is free", base, base.Add(h), base.Add(h), base.Add(2 * h), false},
		{"touching start is free", base, base.Add(h), base.Add(-h), base, false},
		{"disjoint", base, base.Add(h), base.Add(3 * h), base.Add(4 * h), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.s1, tt.e1, tt.s2, tt.e2))
			assert.Equal(t, tt.want, Overlaps(tt.s2, tt.e2, tt.s1, tt.e1), "overlap must be symmetric")
		})
	}
}

func TestBookingWindowAndEffectiveStatus(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := Booking{StartTime: start, EndTime: start.Add(time.Hour), Status: BookingReserved}

	assert.False(t, b.InWindow(start.Add(-time.Second)))
	assert.True(t, b.InWindow(start))
	assert.True(t, b.InWindow(start.Add(59*time.Minute)))
	assert.False(t, b.InWindow(start.Add(time.Hour)))

	assert.Equal(t, BookingReserved, b.EffectiveStatus(start.Add(-time.Minute)))
	assert.Equal(t, BookingActive, b.EffectiveStatus(start.Add(time.Minute)))

	b.Status = BookingPendingApproval
	assert.Equal(t, BookingPendingApproval, b.EffectiveStatus(start.Add(time.Minute)))
	assert.InDelta(t, 1.0, b.DurationHours(), 1e-9)
}

func TestStatusSets(t *testing.T) {
	for _, s := range []BookingStatus{BookingPendingApproval, BookingReserved, BookingActive} {
		assert.True(t, s.IsNonTerminal(), s)
	}
	for _, s := range []BookingStatus{BookingCompleted, BookingCancelled, BookingRejected} {
		assert.True(t, s.IsTerminal(), s)
		assert.False(t, s.IsHolding(), s)
	}
	assert.True(t, BookingReserved.IsHolding())
	assert.True(t, BookingActive.IsHolding())
	assert.False(t, BookingPendingApproval.IsHolding())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(BookingPendingApproval, BookingReserved))
	assert.True(t, CanTransition(BookingPendingApproval, BookingRejected))
	assert.True(t, CanTransition(BookingReserved, BookingCancelled))
	assert.True(t, CanTransition(BookingActive, BookingCompleted))

	assert.False(t, CanTransition(BookingPendingApproval, BookingCancelled))
	assert.False(t, CanTransition(BookingReserved, BookingRejected))
	assert.False(t, CanTransition(BookingCancelled, BookingReserved))
	assert.False(t, CanTransition(BookingCompleted, BookingCompleted))
}

func TestIsHost(t *testing.T) {
	host := uint64(7)
	b := Booking{HostID: &host}
	assert.True(t, b.IsHost(7))
	assert.False(t, b.IsHost(8))
	assert.False(t, Booking{}.IsHost(7))
}
