package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// Duration bounds for a single booking, in hours.
const (
	MinDurationHours = 0.5
	MaxDurationHours = 24
)

// DefaultRejectionReason is stored when a host rejects without a reason.
const DefaultRejectionReason = "No reason provided"

// sweepBatch caps how many ended bookings CompleteExpired handles per run.
const sweepBatch = 100

// ExpiredApprovalReason is stored when a pending booking's window closes
// before its host decides.
const ExpiredApprovalReason = "Approval window expired"

// publishTimeout bounds how long a request waits to hand an event off.
const publishTimeout = 250 * time.Millisecond

var (
	releaseFrom = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	releaseTo   = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// EventPublisher receives booking events after their transaction commits.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, ev queue.BookingEvent) error
}

// Actor is the identity triggering an operation.  Admin covers both
// admin users and the system sweeper.
type Actor struct {
	UserID uint64
	Admin  bool
}

// SystemActor is used by background jobs.
var SystemActor = Actor{Admin: true}

// CreateBookingInput is a booking request.  A nil StartTime means now.
type CreateBookingInput struct {
	FacilityID    uint64
	UserID        uint64
	DurationHours float64
	StartTime     *time.Time
}

// BookingService owns the booking state machine.  Every operation that
// touches a booking row together with its spot runs in one store
// transaction; a retryable store conflict is retried once before it is
// reported as transient.
type BookingService struct {
	Store  repository.Store
	Codes  *CodeIssuer
	Events EventPublisher
	Log    *slog.Logger
	Now    func() time.Time
}

// NewBookingService wires a BookingService.  events may be nil.
func NewBookingService(store repository.Store, events EventPublisher, log *slog.Logger) *BookingService {
	if log == nil {
		log = slog.Default()
	}
	return &BookingService{
		Store:  store,
		Codes:  NewCodeIssuer(),
		Events: events,
		Log:    log,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

func validDuration(h float64) bool {
	return !math.IsNaN(h) && h >= MinDurationHours && h <= MaxDurationHours
}

// Create allocates the nearest free spot of the facility for
// [start, start+duration), issues an access code and stores the booking
// with the status the facility's creation policy dictates.  The spot is
// flipped to reserved in the same transaction.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (model.Booking, error) {
	if !validDuration(in.DurationHours) {
		return model.Booking{}, newError(KindValidation,
			fmt.Sprintf("duration must be between %.1f and %d hours", MinDurationHours, MaxDurationHours))
	}
	now := s.Now()
	start := now
	if in.StartTime != nil {
		start = in.StartTime.UTC()
	}
	// Stored windows have whole-second precision.
	start = start.Truncate(time.Second)
	end := start.Add(time.Duration(in.DurationHours * float64(time.Hour)))

	var b model.Booking
	err := s.inTx(ctx, "create", func(q repository.Queries) error {
		f, err := q.GetFacility(ctx, in.FacilityID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return newError(KindNotFound, "facility not found")
			}
			return err
		}
		status, host, err := policyFor(f).initial(f)
		if err != nil {
			return err
		}
		spot, ok, err := FindSpot(ctx, q, f.ID, start, end)
		if err != nil {
			return err
		}
		if !ok {
			return newError(KindNoCapacity, "no spot available for the requested window")
		}
		code, err := s.Codes.Issue(ctx, q)
		if err != nil {
			return err
		}
		b = model.Booking{
			SpotID:     spot.ID,
			UserID:     in.UserID,
			StartTime:  start,
			EndTime:    end,
			Status:     status,
			AccessCode: code,
			HostID:     host,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := q.InsertBooking(ctx, &b); err != nil {
			return err
		}
		return q.UpdateSpotStatus(ctx, spot.ID, model.SpotReserved)
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.Log.Info("booking created", "booking_id", b.ID, "facility_id", in.FacilityID,
		"spot_id", b.SpotID, "status", b.Status)
	s.publish(ctx, queue.EventBookingCreated, b, in.UserID, "")
	return b, nil
}

// Approve moves a pending booking to reserved.  Only the recorded host
// may approve.
func (s *BookingService) Approve(ctx context.Context, id, actingUserID uint64) (model.Booking, error) {
	b, err := s.transition(ctx, "approve", id, model.BookingReserved, nil, func(b model.Booking) error {
		if b.Status != model.BookingPendingApproval {
			return newError(KindInvalidState, fmt.Sprintf("booking is %s, not pending approval", b.Status))
		}
		if !b.IsHost(actingUserID) {
			return newError(KindNotAuthorized, "only the host can approve this booking")
		}
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.publish(ctx, queue.EventBookingApproved, b, actingUserID, "")
	return b, nil
}

// Reject moves a pending booking to rejected and frees its spot.  Only
// the recorded host may reject.  An empty reason is stored as
// DefaultRejectionReason.
func (s *BookingService) Reject(ctx context.Context, id, actingUserID uint64, reason string) (model.Booking, error) {
	if reason == "" {
		reason = DefaultRejectionReason
	}
	b, err := s.transition(ctx, "reject", id, model.BookingRejected, &reason, func(b model.Booking) error {
		if b.Status != model.BookingPendingApproval {
			return newError(KindInvalidState, fmt.Sprintf("booking is %s, not pending approval", b.Status))
		}
		if !b.IsHost(actingUserID) {
			return newError(KindNotAuthorized, "only the host can reject this booking")
		}
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.publish(ctx, queue.EventBookingRejected, b, actingUserID, reason)
	return b, nil
}

// Cancel moves a reserved or active booking to cancelled and frees its
// spot.  The requester and admins may cancel.
func (s *BookingService) Cancel(ctx context.Context, id uint64, actor Actor) (model.Booking, error) {
	b, err := s.transition(ctx, "cancel", id, model.BookingCancelled, nil, func(b model.Booking) error {
		if !b.Status.IsHolding() {
			return newError(KindInvalidState, fmt.Sprintf("booking is %s and cannot be cancelled", b.Status))
		}
		if !actor.Admin && actor.UserID != b.UserID {
			return newError(KindNotAuthorized, "only the requester or an admin can cancel this booking")
		}
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.publish(ctx, queue.EventBookingCancelled, b, actor.UserID, "")
	return b, nil
}

// Complete moves a reserved or active booking to completed and frees its
// spot.  Only admins and the system may complete.
func (s *BookingService) Complete(ctx context.Context, id uint64, actor Actor) (model.Booking, error) {
	b, err := s.transition(ctx, "complete", id, model.BookingCompleted, nil, func(b model.Booking) error {
		if !b.Status.IsHolding() {
			return newError(KindInvalidState, fmt.Sprintf("booking is %s and cannot be completed", b.Status))
		}
		if !actor.Admin {
			return newError(KindNotAuthorized, "only an admin can complete a booking")
		}
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.publish(ctx, queue.EventBookingCompleted, b, actor.UserID, "")
	return b, nil
}

// CompleteExpired completes holding bookings whose window has closed and
// returns how many it completed.  Bookings that changed state in between
// are skipped.
func (s *BookingService) CompleteExpired(ctx context.Context) (int, error) {
	ids, err := s.Store.ListEndedBookings(ctx, model.HoldingStatuses, s.Now(), sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list ended bookings: %w", err)
	}
	return s.sweep(ctx, ids, func(id uint64) error {
		_, err := s.Complete(ctx, id, SystemActor)
		return err
	})
}

// ExpirePending rejects pending bookings whose window closed before the
// host decided, freeing their spots, and returns how many it rejected.
func (s *BookingService) ExpirePending(ctx context.Context) (int, error) {
	ids, err := s.Store.ListEndedBookings(ctx,
		[]model.BookingStatus{model.BookingPendingApproval}, s.Now(), sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale pending bookings: %w", err)
	}
	return s.sweep(ctx, ids, func(id uint64) error {
		return s.expire(ctx, id)
	})
}

func (s *BookingService) expire(ctx context.Context, id uint64) error {
	reason := ExpiredApprovalReason
	now := s.Now()
	b, err := s.transition(ctx, "expire", id, model.BookingRejected, &reason, func(b model.Booking) error {
		if b.Status != model.BookingPendingApproval {
			return newError(KindInvalidState, fmt.Sprintf("booking is %s, not pending approval", b.Status))
		}
		if now.Before(b.EndTime) {
			return newError(KindInvalidState, "approval window is still open")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, queue.EventBookingRejected, b, SystemActor.UserID, reason)
	return nil
}

func (s *BookingService) sweep(ctx context.Context, ids []uint64, fn func(uint64) error) (int, error) {
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := fn(id); err != nil {
			if IsKind(err, KindInvalidState) || IsKind(err, KindNotFound) {
				continue
			}
			return done, err
		}
		done++
	}
	return done, nil
}

// Get returns a booking visible to actor: its requester, its host or an
// admin.
func (s *BookingService) Get(ctx context.Context, id uint64, actor Actor) (model.Booking, error) {
	b, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Booking{}, newError(KindNotFound, "booking not found")
		}
		return model.Booking{}, err
	}
	if !actor.Admin && actor.UserID != b.UserID && !b.IsHost(actor.UserID) {
		return model.Booking{}, newError(KindNotAuthorized, "booking belongs to another user")
	}
	return b, nil
}

// ListForUser returns a user's bookings, newest first.  activeOnly keeps
// only reserved and active ones.
func (s *BookingService) ListForUser(ctx context.Context, userID uint64, activeOnly bool) ([]model.Booking, error) {
	return s.Store.ListBookingsByUser(ctx, userID, activeOnly)
}

// transition locks the booking, runs guard on it and moves it to status
// to.  Every target other than reserved releases the spot.
func (s *BookingService) transition(ctx context.Context, op string, id uint64, to model.BookingStatus,
	reason *string, guard func(model.Booking) error) (model.Booking, error) {
	var b model.Booking
	now := s.Now()
	err := s.inTx(ctx, op, func(q repository.Queries) error {
		var err error
		b, err = q.GetBookingForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return newError(KindNotFound, "booking not found")
			}
			return err
		}
		if err := guard(b); err != nil {
			return err
		}
		if !model.CanTransition(b.Status, to) {
			return newError(KindInvalidState, fmt.Sprintf("booking cannot move from %s to %s", b.Status, to))
		}
		if err := q.UpdateBookingStatus(ctx, id, to, reason, now); err != nil {
			return err
		}
		if to != model.BookingReserved {
			if err := releaseSpot(ctx, q, b); err != nil {
				return err
			}
		}
		b.Status = to
		if reason != nil {
			r := *reason
			b.RejectionReason = &r
		}
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.Log.Info("booking "+op, "booking_id", b.ID, "status", b.Status)
	return b, nil
}

// releaseSpot marks the booking's spot available unless another
// non-terminal booking still holds it.
func releaseSpot(ctx context.Context, q repository.Queries, b model.Booking) error {
	held, err := q.HasOverlap(ctx, b.SpotID, releaseFrom, releaseTo, b.ID)
	if err != nil {
		return err
	}
	if held {
		return nil
	}
	return q.UpdateSpotStatus(ctx, b.SpotID, model.SpotAvailable)
}

// inTx runs fn in a store transaction and retries it once when the store
// reports a retryable conflict.  Typed service errors pass through;
// conflicts that survive the retry become KindTransient.
func (s *BookingService) inTx(ctx context.Context, op string, fn func(q repository.Queries) error) error {
	err := s.Store.InTx(ctx, fn)
	if err != nil && repository.IsRetryable(err) {
		s.Log.Warn("booking transaction conflict, retrying", "op", op, "error", err)
		err = s.Store.InTx(ctx, fn)
	}
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if repository.IsRetryable(err) || errors.Is(err, errCodeSpaceExhausted) {
		return wrapError(err, KindTransient, "the booking could not be saved, please try again")
	}
	return fmt.Errorf("%s booking: %w", op, err)
}

func (s *BookingService) publish(ctx context.Context, typ string, b model.Booking, actorID uint64, reason string) {
	if s.Events == nil {
		return
	}
	ev := queue.BookingEvent{
		Type:       typ,
		BookingID:  b.ID,
		UserID:     b.UserID,
		SpotID:     b.SpotID,
		Status:     string(b.Status),
		HostID:     b.HostID,
		ActorID:    actorID,
		Reason:     reason,
		StartTime:  b.StartTime.Format(time.RFC3339),
		EndTime:    b.EndTime.Format(time.RFC3339),
		OccurredAt: s.Now().Format(time.RFC3339),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.Events.PublishBookingEvent(pctx, ev); err != nil {
		s.Log.Warn("publish booking event failed", "event", typ, "booking_id", b.ID, "error", err)
	}
}
