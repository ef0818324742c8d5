package service

import (
	"context"
	"errors"
	"math"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// FacilityService serves read-only facility summaries.
type FacilityService struct {
	Store repository.Store
}

func NewFacilityService(store repository.Store) *FacilityService {
	return &FacilityService{Store: store}
}

// Stats returns the spot inventory summary of a facility with its
// confidence score and badges.  The verification rate is a percentage
// rounded to one decimal.
func (s *FacilityService) Stats(ctx context.Context, facilityID uint64) (model.FacilityStats, error) {
	f, err := s.Store.GetFacility(ctx, facilityID)
	if err != nil {
		return model.FacilityStats{}, facilityErr(err)
	}
	st, err := s.Store.GetFacilityStats(ctx, facilityID)
	if err != nil {
		return model.FacilityStats{}, facilityErr(err)
	}
	st.VerificationRate = math.Round(st.VerificationRate*10) / 10
	st.ConfidenceScore = FacilityConfidence(f.OnboardingType, st.TotalSpots, st.Verified)
	st.Badges = StatusBadges(st.ConfidenceScore, f.OnboardingType, st.TotalSpots, st.Verified, st.Available)
	return st, nil
}

// Spots lists the spots of a facility in allocation order, each rated
// with its confidence level.
func (s *FacilityService) Spots(ctx context.Context, facilityID uint64) ([]model.SpotSummary, error) {
	spots, err := s.Store.ListFacilitySpots(ctx, facilityID)
	if err != nil {
		return nil, facilityErr(err)
	}
	for i := range spots {
		spots[i].Confidence = SpotConfidence(spots[i].Verified, spots[i].HasSensor)
	}
	return spots, nil
}

func facilityErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return newError(KindNotFound, "facility not found")
	}
	return err
}
