package repository // repository defines data access for facilities and devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same query code
// serves plain reads and transactional reads.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// FacilityRepo reads facilities and their barrier devices.  Facilities
// are managed outside this service; nothing here writes them.
type FacilityRepo struct {
	db *sql.DB
}

// NewFacilityRepo constructs a FacilityRepo with the given DB handle.
func NewFacilityRepo(db *sql.DB) *FacilityRepo { return &FacilityRepo{db: db} }

const facilityColumns = `id, name, kind, onboarding_type, owner_id, created_at, updated_at`

// GetByID returns a facility or ErrNotFound.
func (r *FacilityRepo) GetByID(ctx context.Context, id uint64) (model.Facility, error) {
	return getFacility(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *FacilityRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Facility, error) {
	return getFacility(ctx, tx, id)
}

func getFacility(ctx context.Context, q dbtx, id uint64) (model.Facility, error) {
	var (
		f       model.Facility
		kind    string
		onboard string
		owner   sql.NullInt64
	)
	err := q.QueryRowContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE id = ? LIMIT 1`, id,
	).Scan(&f.ID, &f.Name, &kind, &onboard, &owner, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Facility{}, ErrNotFound
		}
		return model.Facility{}, fmt.Errorf("FacilityRepo.GetByID: %w", err)
	}
	f.Kind = kind
	f.OnboardingType = model.OnboardingType(onboard)
	if owner.Valid {
		o := uint64(owner.Int64)
		f.OwnerID = &o
	}
	return f, nil
}

// GetDeviceByCode returns the device registered under code or ErrNotFound.
func (r *FacilityRepo) GetDeviceByCode(ctx context.Context, code string) (model.Device, error) {
	var (
		d        model.Device
		kind     string
		spot     sql.NullInt64
		facility sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, device_code, device_type, bound_spot_id, bound_facility_id
		 FROM devices WHERE device_code = ? LIMIT 1`, code,
	).Scan(&d.ID, &d.Code, &kind, &spot, &facility)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Device{}, ErrNotFound
		}
		return model.Device{}, fmt.Errorf("FacilityRepo.GetDeviceByCode: %w", err)
	}
	d.Type = model.DeviceType(kind)
	if spot.Valid {
		v := uint64(spot.Int64)
		d.BoundSpotID = &v
	}
	if facility.Valid {
		v := uint64(facility.Int64)
		d.BoundFacilityID = &v
	}
	return d, nil
}

// Stats aggregates spot counts for a facility in a single pass.
func (r *FacilityRepo) Stats(ctx context.Context, facilityID uint64) (model.FacilityStats, error) {
	st := model.FacilityStats{FacilityID: facilityID}
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(s.status = 'available'), 0),
		        COALESCE(SUM(s.status = 'occupied'), 0),
		        COALESCE(SUM(s.status = 'reserved'), 0),
		        COALESCE(SUM(s.verified), 0)
		 FROM spots s JOIN floors f ON f.id = s.floor_id
		 WHERE f.facility_id = ?`, facilityID,
	).Scan(&st.TotalSpots, &st.Available, &st.Occupied, &st.Reserved, &st.Verified)
	if err != nil {
		return model.FacilityStats{}, fmt.Errorf("FacilityRepo.Stats: %w", err)
	}
	if st.TotalSpots > 0 {
		st.VerificationRate = float64(st.Verified) / float64(st.TotalSpots) * 100
	}
	return st, nil
}
