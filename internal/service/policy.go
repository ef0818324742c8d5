package service

import "github.com/iliyamo/parking-reservation/internal/model"

// creationPolicy decides the initial state of a new booking.  It is
// resolved once per creation from the facility's onboarding type.
type creationPolicy int

const (
	policyDirect creationPolicy = iota
	policyApproval
)

func policyFor(f model.Facility) creationPolicy {
	switch f.OnboardingType {
	case model.OnboardingP2P:
		return policyApproval
	default:
		return policyDirect
	}
}

// initial returns the status and host a booking at f starts with.  A p2p
// facility without an owner cannot be approved by anyone, so it is
// rejected up front.
func (p creationPolicy) initial(f model.Facility) (model.BookingStatus, *uint64, error) {
	switch p {
	case policyApproval:
		if f.OwnerID == nil {
			return "", nil, newError(KindValidation, "facility has no owner to approve bookings")
		}
		host := *f.OwnerID
		return model.BookingPendingApproval, &host, nil
	default:
		return model.BookingReserved, nil, nil
	}
}
