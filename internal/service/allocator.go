package service

import (
	"context"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// Overlaps reports whether a non-terminal booking on spotID other than
// excludeID intersects [start, end).
func Overlaps(ctx context.Context, q repository.Queries, spotID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	return q.HasOverlap(ctx, spotID, start, end, excludeID)
}

// FindSpot returns the first available spot of facilityID, by distance
// from entry then code, with no overlapping non-terminal booking.  The
// available status is only a pre-filter; the overlap check against the
// booking history is what decides.  ok is false when nothing qualifies.
func FindSpot(ctx context.Context, q repository.Queries, facilityID uint64, start, end time.Time) (spot model.Spot, ok bool, err error) {
	candidates, err := q.ListCandidateSpots(ctx, facilityID)
	if err != nil {
		return model.Spot{}, false, err
	}
	for _, sp := range candidates {
		overlap, err := Overlaps(ctx, q, sp.ID, start, end, 0)
		if err != nil {
			return model.Spot{}, false, err
		}
		if !overlap {
			return sp, true, nil
		}
	}
	return model.Spot{}, false, nil
}
