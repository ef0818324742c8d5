package repository // repository defines data access for spots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// SpotRepo is the inventory view over spots.  The booking core reads
// candidates through it and flips a spot's status in the same
// transaction that writes the booking.
type SpotRepo struct {
	db *sql.DB
}

// NewSpotRepo constructs a SpotRepo with the given DB handle.
func NewSpotRepo(db *sql.DB) *SpotRepo { return &SpotRepo{db: db} }

// ListCandidatesTx returns the available spots of a facility in
// allocation order (distance from entry, then code).  Rows are locked
// with FOR UPDATE so two concurrent creations in the same facility
// queue behind each other instead of both picking the nearest spot.
func (r *SpotRepo) ListCandidatesTx(ctx context.Context, tx *sql.Tx, facilityID uint64) ([]model.Spot, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT s.id, s.floor_id, f.facility_id, s.code, s.x, s.y, s.status, s.verified,
		        s.distance_from_entry, s.created_at, s.updated_at
		 FROM spots s JOIN floors f ON f.id = s.floor_id
		 WHERE f.facility_id = ? AND s.status = ?
		 ORDER BY s.distance_from_entry, s.code
		 FOR UPDATE`,
		facilityID, string(model.SpotAvailable),
	)
	if err != nil {
		return nil, fmt.Errorf("SpotRepo.ListCandidatesTx: %w", err)
	}
	defer rows.Close()
	var spots []model.Spot
	for rows.Next() {
		var (
			s      model.Spot
			status string
		)
		if err := rows.Scan(&s.ID, &s.FloorID, &s.FacilityID, &s.Code, &s.X, &s.Y, &status,
			&s.Verified, &s.DistanceFromEntry, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("SpotRepo.ListCandidatesTx (scanning row): %w", err)
		}
		s.Status = model.SpotStatus(status)
		spots = append(spots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SpotRepo.ListCandidatesTx (rows error): %w", err)
	}
	return spots, nil
}

// ListSummaries returns every spot of a facility in allocation order
// with its floor label and whether a sensor is bound to it.
func (r *SpotRepo) ListSummaries(ctx context.Context, facilityID uint64) ([]model.SpotSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.code, f.label, s.status, s.verified, s.distance_from_entry,
		        EXISTS(SELECT 1 FROM devices d WHERE d.bound_spot_id = s.id AND d.device_type = ?)
		 FROM spots s JOIN floors f ON f.id = s.floor_id
		 WHERE f.facility_id = ?
		 ORDER BY s.distance_from_entry, s.code`,
		string(model.DeviceSensor), facilityID,
	)
	if err != nil {
		return nil, fmt.Errorf("SpotRepo.ListSummaries: %w", err)
	}
	defer rows.Close()
	out := []model.SpotSummary{}
	for rows.Next() {
		var (
			s      model.SpotSummary
			status string
		)
		if err := rows.Scan(&s.ID, &s.Code, &s.Floor, &status, &s.Verified, &s.DistanceFromEntry, &s.HasSensor); err != nil {
			return nil, fmt.Errorf("SpotRepo.ListSummaries (scanning row): %w", err)
		}
		s.Status = model.SpotStatus(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SpotRepo.ListSummaries (rows error): %w", err)
	}
	return out, nil
}

// UpdateStatusTx sets the status of a spot inside the caller's transaction.
func (r *SpotRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, spotID uint64, status model.SpotStatus) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE spots SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		string(status), spotID,
	); err != nil {
		return fmt.Errorf("SpotRepo.UpdateStatusTx: %w", err)
	}
	return nil
}

// CountAvailable returns how many spots of a facility are available.
func (r *SpotRepo) CountAvailable(ctx context.Context, facilityID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM spots s JOIN floors f ON f.id = s.floor_id
		 WHERE f.facility_id = ? AND s.status = ?`,
		facilityID, string(model.SpotAvailable),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("SpotRepo.CountAvailable: %w", err)
	}
	return n, nil
}

// GetLocation resolves a spot to its code, floor label and facility.
func (r *SpotRepo) GetLocation(ctx context.Context, spotID uint64) (model.SpotLocation, error) {
	var loc model.SpotLocation
	err := r.db.QueryRowContext(ctx,
		`SELECT s.id, s.code, fl.label, fa.id, fa.name
		 FROM spots s
		 JOIN floors fl ON fl.id = s.floor_id
		 JOIN facilities fa ON fa.id = fl.facility_id
		 WHERE s.id = ? LIMIT 1`, spotID,
	).Scan(&loc.SpotID, &loc.SpotCode, &loc.FloorLabel, &loc.FacilityID, &loc.FacilityName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SpotLocation{}, ErrNotFound
		}
		return model.SpotLocation{}, fmt.Errorf("SpotRepo.GetLocation: %w", err)
	}
	return loc, nil
}
