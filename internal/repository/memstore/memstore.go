// Package memstore is an in-memory repository.Store.  Transactions are
// serialised by a single mutex and rolled back by restoring a snapshot,
// which gives the same all-or-nothing visibility the MySQL store provides.
// The unique index on access codes is enforced on insert.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// Store holds facilities, floors, spots, devices and bookings in maps.
type Store struct {
	mu sync.Mutex

	facilities map[uint64]model.Facility
	floors     map[uint64]model.Floor
	spots      map[uint64]model.Spot
	devices    map[string]model.Device
	bookings   map[uint64]model.Booking
	codes      map[string]uint64

	nextID   uint64
	failures []error
	txCount  int
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		facilities: map[uint64]model.Facility{},
		floors:     map[uint64]model.Floor{},
		spots:      map[uint64]model.Spot{},
		devices:    map[string]model.Device{},
		bookings:   map[uint64]model.Booking{},
		codes:      map[string]uint64{},
	}
}

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

// FailNextTx makes the next len(errs) calls to InTx fail with the given
// errors, in order, before fn runs.
func (s *Store) FailNextTx(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

// TxCount returns how many transactions have been started.
func (s *Store) TxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

// AddFacility stores f, assigning an id when f.ID is zero.
func (s *Store) AddFacility(f model.Facility) model.Facility {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == 0 {
		f.ID = s.id()
	}
	s.facilities[f.ID] = f
	return f
}

// AddFloor creates a floor labelled label in facilityID.
func (s *Store) AddFloor(facilityID uint64, label string) model.Floor {
	s.mu.Lock()
	defer s.mu.Unlock()
	fl := model.Floor{ID: s.id(), FacilityID: facilityID, Label: label}
	s.floors[fl.ID] = fl
	return fl
}

// AddSpot stores sp on its floor.  FacilityID is taken from the floor and
// an empty status defaults to available.
func (s *Store) AddSpot(sp model.Spot) model.Spot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sp.ID == 0 {
		sp.ID = s.id()
	}
	if fl, ok := s.floors[sp.FloorID]; ok {
		sp.FacilityID = fl.FacilityID
	}
	if sp.Status == "" {
		sp.Status = model.SpotAvailable
	}
	s.spots[sp.ID] = sp
	return sp
}

// AddDevice registers d under its code.
func (s *Store) AddDevice(d model.Device) model.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.id()
	}
	s.devices[d.Code] = d
	return d
}

// AddBooking stores an existing booking as is, without touching the spot.
func (s *Store) AddBooking(b model.Booking) model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.id()
	}
	s.bookings[b.ID] = b
	s.codes[b.AccessCode] = b.ID
	return b
}

// Spot returns the current state of a spot.
func (s *Store) Spot(id uint64) (model.Spot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spots[id]
	return sp, ok
}

// SetSpotStatus overwrites a spot's status outside any booking flow.
func (s *Store) SetSpotStatus(id uint64, status model.SpotStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sp, ok := s.spots[id]; ok {
		sp.Status = status
		s.spots[id] = sp
	}
}

// Bookings returns every stored booking ordered by id.
func (s *Store) Bookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type snapshot struct {
	spots    map[uint64]model.Spot
	bookings map[uint64]model.Booking
	codes    map[string]uint64
	nextID   uint64
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		spots:    make(map[uint64]model.Spot, len(s.spots)),
		bookings: make(map[uint64]model.Booking, len(s.bookings)),
		codes:    make(map[string]uint64, len(s.codes)),
		nextID:   s.nextID,
	}
	for k, v := range s.spots {
		snap.spots[k] = v
	}
	for k, v := range s.bookings {
		snap.bookings[k] = v
	}
	for k, v := range s.codes {
		snap.codes[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.spots = snap.spots
	s.bookings = snap.bookings
	s.codes = snap.codes
	s.nextID = snap.nextID
}

// InTx runs fn while holding the store lock and discards its writes when
// it returns an error.
func (s *Store) InTx(ctx context.Context, fn func(q repository.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return err
	}
	snap := s.snapshot()
	if err := fn(txView{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) GetBooking(_ context.Context, id uint64) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.booking(id)
}

func (s *Store) booking(id uint64) (model.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return b, nil
}

func (s *Store) GetBookingByAccessCode(_ context.Context, code string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[code]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return s.booking(id)
}

func (s *Store) ListBookingsByUser(_ context.Context, userID uint64, activeOnly bool) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Booking{}
	for _, b := range s.bookings {
		if b.UserID != userID || (activeOnly && !b.Status.IsHolding()) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ListEndedBookings(_ context.Context, statuses []model.BookingStatus, now time.Time, limit int) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ended []model.Booking
	for _, b := range s.bookings {
		if slices.Contains(statuses, b.Status) && !b.EndTime.After(now) {
			ended = append(ended, b)
		}
	}
	sort.Slice(ended, func(i, j int) bool {
		if !ended[i].EndTime.Equal(ended[j].EndTime) {
			return ended[i].EndTime.Before(ended[j].EndTime)
		}
		return ended[i].ID < ended[j].ID
	})
	var ids []uint64
	for _, b := range ended {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (s *Store) GetFacility(_ context.Context, id uint64) (model.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facility(id)
}

func (s *Store) facility(id uint64) (model.Facility, error) {
	f, ok := s.facilities[id]
	if !ok {
		return model.Facility{}, repository.ErrNotFound
	}
	return f, nil
}

func (s *Store) GetFacilityStats(_ context.Context, facilityID uint64) (model.FacilityStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.facility(facilityID); err != nil {
		return model.FacilityStats{}, err
	}
	st := model.FacilityStats{FacilityID: facilityID}
	for _, sp := range s.spots {
		if sp.FacilityID != facilityID {
			continue
		}
		st.TotalSpots++
		switch sp.Status {
		case model.SpotAvailable:
			st.Available++
		case model.SpotOccupied:
			st.Occupied++
		case model.SpotReserved:
			st.Reserved++
		}
		if sp.Verified {
			st.Verified++
		}
	}
	if st.TotalSpots > 0 {
		st.VerificationRate = float64(st.Verified) / float64(st.TotalSpots) * 100
	}
	return st, nil
}

func (s *Store) ListFacilitySpots(_ context.Context, facilityID uint64) ([]model.SpotSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.facility(facilityID); err != nil {
		return nil, err
	}
	sensors := map[uint64]bool{}
	for _, d := range s.devices {
		if d.Type == model.DeviceSensor && d.BoundSpotID != nil {
			sensors[*d.BoundSpotID] = true
		}
	}
	var spots []model.Spot
	for _, sp := range s.spots {
		if sp.FacilityID == facilityID {
			spots = append(spots, sp)
		}
	}
	sort.Slice(spots, func(i, j int) bool {
		if spots[i].DistanceFromEntry != spots[j].DistanceFromEntry {
			return spots[i].DistanceFromEntry < spots[j].DistanceFromEntry
		}
		return spots[i].Code < spots[j].Code
	})
	out := make([]model.SpotSummary, 0, len(spots))
	for _, sp := range spots {
		out = append(out, model.SpotSummary{
			ID:                sp.ID,
			Code:              sp.Code,
			Floor:             s.floors[sp.FloorID].Label,
			Status:            sp.Status,
			Verified:          sp.Verified,
			DistanceFromEntry: sp.DistanceFromEntry,
			HasSensor:         sensors[sp.ID],
		})
	}
	return out, nil
}

func (s *Store) CountAvailableSpots(_ context.Context, facilityID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sp := range s.spots {
		if sp.FacilityID == facilityID && sp.Status == model.SpotAvailable {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetSpotLocation(_ context.Context, spotID uint64) (model.SpotLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spots[spotID]
	if !ok {
		return model.SpotLocation{}, repository.ErrNotFound
	}
	loc := model.SpotLocation{SpotID: sp.ID, SpotCode: sp.Code, FacilityID: sp.FacilityID}
	loc.FloorLabel = s.floors[sp.FloorID].Label
	loc.FacilityName = s.facilities[sp.FacilityID].Name
	return loc, nil
}

func (s *Store) GetDeviceByCode(_ context.Context, code string) (model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[code]
	if !ok {
		return model.Device{}, repository.ErrNotFound
	}
	return d, nil
}

// txView implements repository.Queries on a store whose lock is held.
type txView struct{ s *Store }

func (v txView) GetFacility(_ context.Context, id uint64) (model.Facility, error) {
	return v.s.facility(id)
}

func (v txView) ListCandidateSpots(_ context.Context, facilityID uint64) ([]model.Spot, error) {
	var out []model.Spot
	for _, sp := range v.s.spots {
		if sp.FacilityID == facilityID && sp.Status == model.SpotAvailable {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceFromEntry != out[j].DistanceFromEntry {
			return out[i].DistanceFromEntry < out[j].DistanceFromEntry
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (v txView) HasOverlap(_ context.Context, spotID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	for _, b := range v.s.bookings {
		if b.SpotID != spotID || b.ID == excludeID || !b.Status.IsNonTerminal() {
			continue
		}
		if model.Overlaps(b.StartTime, b.EndTime, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (v txView) AccessCodeExists(_ context.Context, code string) (bool, error) {
	_, ok := v.s.codes[code]
	return ok, nil
}

func (v txView) InsertBooking(_ context.Context, b *model.Booking) error {
	if _, taken := v.s.codes[b.AccessCode]; taken {
		return repository.ErrDuplicateAccessCode
	}
	b.ID = v.s.id()
	v.s.bookings[b.ID] = *b
	v.s.codes[b.AccessCode] = b.ID
	return nil
}

func (v txView) GetBookingForUpdate(_ context.Context, id uint64) (model.Booking, error) {
	return v.s.booking(id)
}

func (v txView) UpdateBookingStatus(_ context.Context, id uint64, status model.BookingStatus,
	reason *string, updatedAt time.Time) error {
	b, ok := v.s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.Status = status
	if reason != nil {
		r := *reason
		b.RejectionReason = &r
	}
	b.UpdatedAt = updatedAt.UTC()
	v.s.bookings[id] = b
	return nil
}

func (v txView) UpdateSpotStatus(_ context.Context, spotID uint64, status model.SpotStatus) error {
	sp, ok := v.s.spots[spotID]
	if !ok {
		return repository.ErrNotFound
	}
	sp.Status = status
	v.s.spots[spotID] = sp
	return nil
}
