// Package queue defines message payloads exchanged over the message broker
// together with the RabbitMQ publisher and the background consumer.
package queue

// Booking lifecycle event types.  They double as the "type" field of the
// JSON payload.
const (
	EventBookingCreated   = "booking.created"
	EventBookingApproved  = "booking.approved"
	EventBookingRejected  = "booking.rejected"
	EventBookingCancelled = "booking.cancelled"
	EventBookingCompleted = "booking.completed"
)

// BookingEvent is published after a booking transaction commits.  It
// carries enough information for downstream consumers to log, notify or
// feed analytics without querying the primary database.
type BookingEvent struct {
	Type       string  `json:"type"`
	BookingID  uint64  `json:"booking_id"`
	UserID     uint64  `json:"user_id"`
	SpotID     uint64  `json:"spot_id"`
	Status     string  `json:"status"`
	HostID     *uint64 `json:"host_id,omitempty"`
	ActorID    uint64  `json:"actor_id"`
	Reason     string  `json:"reason,omitempty"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	OccurredAt string  `json:"occurred_at"`
}
