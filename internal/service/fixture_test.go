package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/repository/memstore"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

const ownerID uint64 = 100

type recorder struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (r *recorder) PublishBookingEvent(_ context.Context, ev queue.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	store  *memstore.Store
	svc    *BookingService
	access *AccessValidator
	events *recorder
	now    time.Time

	direct model.Facility
	p2p    model.Facility
	other  model.Facility
	// spots of the direct facility by distance
	near, mid, far model.Spot
	p2pSpot        model.Spot
	otherSpot      model.Spot
}

func (f *fixture) clock() time.Time { return f.now }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	owner := ownerID
	f := &fixture{store: st, events: &recorder{}, now: t0}

	f.direct = st.AddFacility(model.Facility{Name: "Central Mall", Kind: "mall", OnboardingType: model.OnboardingEnterprise})
	fl := st.AddFloor(f.direct.ID, "B1")
	f.far = st.AddSpot(model.Spot{FloorID: fl.ID, Code: "A-3", DistanceFromEntry: 50, Verified: true})
	f.near = st.AddSpot(model.Spot{FloorID: fl.ID, Code: "A-1", DistanceFromEntry: 5, Verified: true})
	f.mid = st.AddSpot(model.Spot{FloorID: fl.ID, Code: "A-2", DistanceFromEntry: 20})

	f.p2p = st.AddFacility(model.Facility{Name: "Driveway 7", Kind: "lot", OnboardingType: model.OnboardingP2P, OwnerID: &owner})
	pfl := st.AddFloor(f.p2p.ID, "G")
	f.p2pSpot = st.AddSpot(model.Spot{FloorID: pfl.ID, Code: "D-1", DistanceFromEntry: 1})

	f.other = st.AddFacility(model.Facility{Name: "Tech Park", Kind: "office", OnboardingType: model.OnboardingSmall})
	ofl := st.AddFloor(f.other.ID, "P1")
	f.otherSpot = st.AddSpot(model.Spot{FloorID: ofl.ID, Code: "T-1", DistanceFromEntry: 3})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewBookingService(st, f.events, logger)
	f.svc.Now = f.clock
	f.access = NewAccessValidator(st, "", logger)
	f.access.Now = f.clock
	return f
}

func (f *fixture) book(t *testing.T, facilityID, userID uint64, start time.Time, hours float64) (model.Booking, error) {
	t.Helper()
	return f.svc.Create(context.Background(), CreateBookingInput{
		FacilityID: facilityID, UserID: userID, DurationHours: hours, StartTime: &start,
	})
}

func (f *fixture) spotStatus(t *testing.T, id uint64) model.SpotStatus {
	t.Helper()
	sp, ok := f.store.Spot(id)
	if !ok {
		t.Fatalf("spot %d missing", id)
	}
	return sp.Status
}
