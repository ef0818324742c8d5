package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/model"
)

func TestValidateCode_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.book(t, f.direct.ID, 1, t0, 1)
	require.NoError(t, err)

	f.now = t0.Add(15 * time.Minute)
	res, err := f.access.ValidateCode(ctx, b.AccessCode)
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Error)
	assert.Equal(t, b.ID, res.BookingID)
	assert.Equal(t, uint64(1), res.UserID)
	assert.Equal(t, "A-1", res.SpotCode)
	assert.Equal(t, "B1", res.Floor)
	assert.Equal(t, f.direct.ID, res.FacilityID)
	assert.Equal(t, "Central Mall", res.Facility)
	assert.Equal(t, model.BookingActive, res.Status)
	assert.Equal(t, int64(45*60), res.TimeRemainingSeconds)

	res, err = f.access.ValidateCode(ctx, " "+strings.ToLower(b.AccessCode)+" ")
	require.NoError(t, err)
	assert.True(t, res.Valid, "codes are matched case-insensitively")

	f.now = b.EndTime
	res, err = f.access.ValidateCode(ctx, b.AccessCode)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, msgNotActive, res.Error)
	assert.Equal(t, KindInvalidState, res.Kind)
	assert.Zero(t, res.TimeRemainingSeconds)
	assert.Equal(t, b.ID, res.BookingID)
}

func TestValidateCode_BeforeWindowAndTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.book(t, f.direct.ID, 1, t0.Add(time.Hour), 1)
	require.NoError(t, err)

	res, err := f.access.ValidateCode(ctx, b.AccessCode)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, model.BookingReserved, res.Status)

	_, err = f.svc.Cancel(ctx, b.ID, Actor{UserID: 1})
	require.NoError(t, err)
	f.now = t0.Add(90 * time.Minute)
	res, err = f.access.ValidateCode(ctx, b.AccessCode)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, model.BookingCancelled, res.Status)
}

func TestValidateCode_PendingNeverGrantsAccess(t *testing.T) {
	f := newFixture(t)
	b, err := f.book(t, f.p2p.ID, 1, t0, 1)
	require.NoError(t, err)

	f.now = t0.Add(time.Minute)
	res, err := f.access.ValidateCode(context.Background(), b.AccessCode)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, model.BookingPendingApproval, res.Status)
}

func TestValidateCode_Unknown(t *testing.T) {
	f := newFixture(t)
	for _, code := range []string{"", "NOPE00", "toolongcode", "AB-123"} {
		res, err := f.access.ValidateCode(context.Background(), code)
		require.NoError(t, err)
		assert.False(t, res.Valid, code)
		assert.Equal(t, msgInvalidCode, res.Error, code)
		assert.Equal(t, KindNotFound, res.Kind, code)
	}
}

func TestValidateCode_DoesNotChangeState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.book(t, f.direct.ID, 1, t0, 1)
	require.NoError(t, err)

	f.now = t0.Add(time.Minute)
	_, err = f.access.ValidateCode(ctx, b.AccessCode)
	require.NoError(t, err)

	stored, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingReserved, stored.Status)
	assert.Equal(t, model.SpotReserved, f.spotStatus(t, b.SpotID))
}

func TestPayloadRoundTrip(t *testing.T) {
	f := newFixture(t)
	p := f.access.Payload(model.Booking{ID: 42, AccessCode: "K7Q2ZP"})
	assert.Equal(t, "PARKHERO-K7Q2ZP-42", p.Payload)

	code, id, err := f.access.ParsePayload(p.Payload)
	require.NoError(t, err)
	assert.Equal(t, "K7Q2ZP", code)
	assert.Equal(t, uint64(42), id)

	for _, bad := range []string{
		"", "PARKHERO", "PARKHERO-K7Q2ZP", "PARKHERO-K7Q2ZP-42-1", "OTHER-K7Q2ZP-42",
		"PARKHERO-k7q2zp-42", "PARKHERO-K7Q2ZP-x", "PARKHERO-K7Q2ZP-0", "PARKHERO:K7Q2ZP:42",
	} {
		_, _, err := f.access.ParsePayload(bad)
		assert.True(t, IsKind(err, KindValidation), "%q: %v", bad, err)
	}
}

func addBarrier(f *fixture, code string, facilityID uint64) {
	f.store.AddDevice(model.Device{Code: code, Type: model.DeviceBarrier, BoundFacilityID: &facilityID})
}

func TestValidateBarrier_OpensForMatchingBooking(t *testing.T) {
	f := newFixture(t)
	addBarrier(f, "GATE-1", f.direct.ID)
	b, err := f.book(t, f.direct.ID, 1, t0, 2)
	require.NoError(t, err)

	f.now = t0.Add(time.Minute)
	res, err := f.access.ValidateBarrier(context.Background(), f.access.Payload(b).Payload, "GATE-1")
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Error)
	assert.Equal(t, ActionOpenBarrier, res.Action)
	assert.Equal(t, b.ID, res.BookingID)
	assert.Equal(t, "Central Mall", res.Facility)
	assert.Equal(t, 2.0, res.DurationHours)
	require.NotNil(t, res.SpotsAvailable)
	assert.Equal(t, 2, *res.SpotsAvailable)
}

func TestValidateBarrier_CrossFacility(t *testing.T) {
	f := newFixture(t)
	addBarrier(f, "GATE-F1", f.direct.ID)
	b, err := f.book(t, f.other.ID, 1, t0, 1)
	require.NoError(t, err)

	f.now = t0.Add(time.Minute)
	res, err := f.access.ValidateBarrier(context.Background(), f.access.Payload(b).Payload, "GATE-F1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, KindCrossFacility, res.Kind)
	assert.Equal(t, "Ticket not valid for this facility (Go to Tech Park)", res.Error)
	assert.Empty(t, res.Action)
}

func TestValidateBarrier_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addBarrier(f, "GATE-1", f.direct.ID)
	f.store.AddDevice(model.Device{Code: "SENSOR-1", Type: model.DeviceSensor, BoundSpotID: &f.near.ID})
	f.store.AddDevice(model.Device{Code: "GATE-LOOSE", Type: model.DeviceBarrier})

	b, err := f.book(t, f.direct.ID, 1, t0, 1)
	require.NoError(t, err)
	other, err := f.book(t, f.direct.ID, 2, t0, 1)
	require.NoError(t, err)
	good := f.access.Payload(b).Payload
	f.now = t0.Add(time.Minute)

	tests := []struct {
		name    string
		payload string
		device  string
		kind    Kind
		msg     string
	}{
		{"unknown device", good, "GATE-404", KindNotFound, msgInvalidDevice},
		{"sensor is not a barrier", good, "SENSOR-1", KindNotFound, msgInvalidDevice},
		{"barrier without facility", good, "GATE-LOOSE", KindNotFound, msgInvalidDevice},
		{"malformed payload", "garbage", "GATE-1", KindValidation, msgInvalidQR},
		{"wrong prefix", "EVIL-" + b.AccessCode + fmt.Sprintf("-%d", b.ID), "GATE-1", KindValidation, msgInvalidQR},
		{"code and id disagree", fmt.Sprintf("PARKHERO-%s-%d", b.AccessCode, other.ID), "GATE-1", KindNotFound, msgBookingMissing},
		{"unknown code", fmt.Sprintf("PARKHERO-ZZZZZ9-%d", b.ID), "GATE-1", KindNotFound, msgBookingMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.access.ValidateBarrier(ctx, tt.payload, tt.device)
			require.NoError(t, err)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.msg, res.Error)
		})
	}
}

func TestValidateBarrier_OutsideWindow(t *testing.T) {
	f := newFixture(t)
	addBarrier(f, "GATE-1", f.direct.ID)
	b, err := f.book(t, f.direct.ID, 1, t0, 1)
	require.NoError(t, err)

	f.now = t0.Add(-time.Second)
	res, err := f.access.ValidateBarrier(context.Background(), f.access.Payload(b).Payload, "GATE-1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, msgNotActive, res.Error)

	f.now = t0.Add(time.Hour)
	res, err = f.access.ValidateBarrier(context.Background(), f.access.Payload(b).Payload, "GATE-1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestBothChannelsAgree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addBarrier(f, "GATE-1", f.direct.ID)
	b, err := f.book(t, f.direct.ID, 1, t0, 1)
	require.NoError(t, err)
	payload := f.access.Payload(b).Payload

	for _, at := range []time.Duration{-time.Minute, 0, 30 * time.Minute, time.Hour - time.Second, time.Hour} {
		f.now = t0.Add(at)
		code, err := f.access.ValidateCode(ctx, b.AccessCode)
		require.NoError(t, err)
		bar, err := f.access.ValidateBarrier(ctx, payload, "GATE-1")
		require.NoError(t, err)
		assert.Equal(t, code.Valid, bar.Valid, "at %s", at)
	}
}

func TestFacilityStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.book(t, f.direct.ID, 1, t0, 1)
	require.NoError(t, err)
	f.store.SetSpotStatus(f.far.ID, model.SpotOccupied)

	st, err := NewFacilityService(f.store).Stats(ctx, f.direct.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalSpots)
	assert.Equal(t, 1, st.Available)
	assert.Equal(t, 1, st.Reserved)
	assert.Equal(t, 1, st.Occupied)
	assert.Equal(t, 2, st.Verified)
	assert.Equal(t, 66.7, st.VerificationRate)

	_, err = NewFacilityService(f.store).Stats(ctx, 5555)
	assert.True(t, IsKind(err, KindNotFound), "%v", err)
}
