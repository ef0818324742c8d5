package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// MySQLStore implements Store on top of the MySQL repositories.
type MySQLStore struct {
	db         *sql.DB
	Facilities *FacilityRepo
	Spots      *SpotRepo
	Bookings   *BookingRepo
}

// NewMySQLStore wires the repositories that share db.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		db:         db,
		Facilities: NewFacilityRepo(db),
		Spots:      NewSpotRepo(db),
		Bookings:   NewBookingRepo(db),
	}
}

// InTx runs fn in a serializable transaction.  The transaction is rolled
// back unless fn returns nil and the commit succeeds.
func (s *MySQLStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&txQueries{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func (s *MySQLStore) GetBooking(ctx context.Context, id uint64) (model.Booking, error) {
	return s.Bookings.GetByID(ctx, id)
}

func (s *MySQLStore) GetBookingByAccessCode(ctx context.Context, code string) (model.Booking, error) {
	return s.Bookings.GetByAccessCode(ctx, code)
}

func (s *MySQLStore) ListBookingsByUser(ctx context.Context, userID uint64, activeOnly bool) ([]model.Booking, error) {
	return s.Bookings.ListByUser(ctx, userID, activeOnly)
}

func (s *MySQLStore) ListEndedBookings(ctx context.Context, statuses []model.BookingStatus, now time.Time, limit int) ([]uint64, error) {
	return s.Bookings.ListEnded(ctx, statuses, now, limit)
}

func (s *MySQLStore) GetFacility(ctx context.Context, id uint64) (model.Facility, error) {
	return s.Facilities.GetByID(ctx, id)
}

func (s *MySQLStore) GetFacilityStats(ctx context.Context, facilityID uint64) (model.FacilityStats, error) {
	if _, err := s.Facilities.GetByID(ctx, facilityID); err != nil {
		return model.FacilityStats{}, err
	}
	return s.Facilities.Stats(ctx, facilityID)
}

func (s *MySQLStore) ListFacilitySpots(ctx context.Context, facilityID uint64) ([]model.SpotSummary, error) {
	if _, err := s.Facilities.GetByID(ctx, facilityID); err != nil {
		return nil, err
	}
	return s.Spots.ListSummaries(ctx, facilityID)
}

func (s *MySQLStore) CountAvailableSpots(ctx context.Context, facilityID uint64) (int, error) {
	return s.Spots.CountAvailable(ctx, facilityID)
}

func (s *MySQLStore) GetSpotLocation(ctx context.Context, spotID uint64) (model.SpotLocation, error) {
	return s.Spots.GetLocation(ctx, spotID)
}

func (s *MySQLStore) GetDeviceByCode(ctx context.Context, code string) (model.Device, error) {
	return s.Facilities.GetDeviceByCode(ctx, code)
}

// txQueries binds the repositories' Tx methods to one open transaction.
type txQueries struct {
	tx *sql.Tx
	s  *MySQLStore
}

func (q *txQueries) GetFacility(ctx context.Context, id uint64) (model.Facility, error) {
	return q.s.Facilities.GetByIDTx(ctx, q.tx, id)
}

func (q *txQueries) ListCandidateSpots(ctx context.Context, facilityID uint64) ([]model.Spot, error) {
	return q.s.Spots.ListCandidatesTx(ctx, q.tx, facilityID)
}

func (q *txQueries) HasOverlap(ctx context.Context, spotID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	return q.s.Bookings.HasOverlapTx(ctx, q.tx, spotID, start, end, excludeID)
}

func (q *txQueries) AccessCodeExists(ctx context.Context, code string) (bool, error) {
	return q.s.Bookings.AccessCodeExistsTx(ctx, q.tx, code)
}

func (q *txQueries) InsertBooking(ctx context.Context, b *model.Booking) error {
	return q.s.Bookings.CreateTx(ctx, q.tx, b)
}

func (q *txQueries) GetBookingForUpdate(ctx context.Context, id uint64) (model.Booking, error) {
	return q.s.Bookings.GetByIDForUpdateTx(ctx, q.tx, id)
}

func (q *txQueries) UpdateBookingStatus(ctx context.Context, id uint64, status model.BookingStatus,
	reason *string, updatedAt time.Time) error {
	return q.s.Bookings.UpdateStatusTx(ctx, q.tx, id, status, reason, updatedAt)
}

func (q *txQueries) UpdateSpotStatus(ctx context.Context, spotID uint64, status model.SpotStatus) error {
	return q.s.Spots.UpdateStatusTx(ctx, q.tx, spotID, status)
}
