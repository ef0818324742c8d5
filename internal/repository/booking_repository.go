package repository // repository defines data access for bookings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// BookingRepo provides data access to the bookings table.  Bookings are
// never deleted: cancelled, completed and rejected rows stay behind as an
// audit record and keep their access codes reserved forever through the
// unique index on access_code.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, spot_id, user_id, start_time, end_time, status, access_code,
	host_user_id, rejection_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (model.Booking, error) {
	var (
		b      model.Booking
		status string
		host   sql.NullInt64
		reason sql.NullString
	)
	if err := row.Scan(&b.ID, &b.SpotID, &b.UserID, &b.StartTime, &b.EndTime, &status,
		&b.AccessCode, &host, &reason, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	if host.Valid {
		h := uint64(host.Int64)
		b.HostID = &h
	}
	if reason.Valid {
		r := reason.String
		b.RejectionReason = &r
	}
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	return b, nil
}

func getBooking(ctx context.Context, q dbtx, where string, arg interface{}, suffix string) (model.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE `+where+` = ? LIMIT 1`+suffix, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, ErrNotFound
		}
		return model.Booking{}, err
	}
	return b, nil
}

// GetByID returns a booking or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	b, err := getBooking(ctx, r.db, "id", id, "")
	if err != nil && !errors.Is(err, ErrNotFound) {
		return b, fmt.Errorf("BookingRepo.GetByID: %w", err)
	}
	return b, err
}

// GetByIDForUpdateTx loads a booking and locks its row until the
// transaction ends so concurrent transitions on it are serialised.
func (r *BookingRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, error) {
	b, err := getBooking(ctx, tx, "id", id, " FOR UPDATE")
	if err != nil && !errors.Is(err, ErrNotFound) {
		return b, fmt.Errorf("BookingRepo.GetByIDForUpdateTx: %w", err)
	}
	return b, err
}

// GetByAccessCode returns the unique booking holding code or ErrNotFound.
func (r *BookingRepo) GetByAccessCode(ctx context.Context, code string) (model.Booking, error) {
	b, err := getBooking(ctx, r.db, "access_code", code, "")
	if err != nil && !errors.Is(err, ErrNotFound) {
		return b, fmt.Errorf("BookingRepo.GetByAccessCode: %w", err)
	}
	return b, err
}

// AccessCodeExistsTx reports whether any booking, in any state, already
// uses code.
func (r *BookingRepo) AccessCodeExistsTx(ctx context.Context, tx *sql.Tx, code string) (bool, error) {
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM bookings WHERE access_code = ?)`, code,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("BookingRepo.AccessCodeExistsTx: %w", err)
	}
	return exists, nil
}

// HasOverlapTx reports whether a non-terminal booking on spotID other
// than excludeID intersects the half-open window [start, end).
func (r *BookingRepo) HasOverlapTx(ctx context.Context, tx *sql.Tx, spotID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	in, args := statusArgs(model.NonTerminalStatuses)
	q := `SELECT EXISTS(SELECT 1 FROM bookings
	      WHERE spot_id = ? AND status IN (` + in + `)
	      AND start_time < ? AND end_time > ? AND id <> ?)`
	all := append([]interface{}{spotID}, args...)
	all = append(all, end.UTC(), start.UTC(), excludeID)
	var overlap bool
	if err := tx.QueryRowContext(ctx, q, all...).Scan(&overlap); err != nil {
		return false, fmt.Errorf("BookingRepo.HasOverlapTx: %w", err)
	}
	return overlap, nil
}

// CreateTx inserts a booking and fills in its ID.  A collision on the
// access code index surfaces as ErrDuplicateAccessCode.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	var host interface{}
	if b.HostID != nil {
		host = *b.HostID
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (spot_id, user_id, start_time, end_time, status, access_code,
		   host_user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.SpotID, b.UserID, b.StartTime.UTC(), b.EndTime.UTC(), string(b.Status), b.AccessCode,
		host, b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return ErrDuplicateAccessCode
		}
		return fmt.Errorf("BookingRepo.CreateTx: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("BookingRepo.CreateTx: %w", err)
	}
	b.ID = uint64(id)
	return nil
}

// UpdateStatusTx moves a booking to status at updatedAt.  A non-nil
// reason is stored as the rejection reason; nil leaves the column
// untouched.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.BookingStatus,
	reason *string, updatedAt time.Time) error {
	var rs interface{}
	if reason != nil {
		rs = *reason
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, rejection_reason = COALESCE(?, rejection_reason),
		   updated_at = ?
		 WHERE id = ?`,
		string(status), rs, updatedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("BookingRepo.UpdateStatusTx: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns the bookings of a user, newest first.  With
// activeOnly set only reserved and active bookings are returned.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64, activeOnly bool) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ?`
	args := []interface{}{userID}
	if activeOnly {
		in, sargs := statusArgs(model.HoldingStatuses)
		q += ` AND status IN (` + in + `)`
		args = append(args, sargs...)
	}
	q += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("BookingRepo.ListByUser: %w", err)
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("BookingRepo.ListByUser (scanning row): %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("BookingRepo.ListByUser (rows error): %w", err)
	}
	return out, nil
}

// ListEnded returns ids of bookings in one of statuses whose window
// closed at or before now.
func (r *BookingRepo) ListEnded(ctx context.Context, statuses []model.BookingStatus, now time.Time, limit int) ([]uint64, error) {
	in, args := statusArgs(statuses)
	args = append(args, now.UTC(), limit)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM bookings WHERE status IN (`+in+`) AND end_time <= ?
		 ORDER BY end_time, id LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("BookingRepo.ListEnded: %w", err)
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("BookingRepo.ListEnded (scanning row): %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("BookingRepo.ListEnded (rows error): %w", err)
	}
	return ids, nil
}
