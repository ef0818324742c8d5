package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository/memstore"
	"github.com/iliyamo/parking-reservation/internal/router"
	"github.com/iliyamo/parking-reservation/internal/service"
	"github.com/iliyamo/parking-reservation/internal/utils"
)

const (
	secret          = "test-secret"
	requester       = uint64(7)
	stranger        = uint64(8)
	hostID          = uint64(100)
	adminID         = uint64(1)
	mallGate        = "GATE-MALL-1"
	techParkGate    = "GATE-TP-1"
	directFacility  = "Central Mall"
	otherFacility   = "Tech Park"
	qrPayloadPrefix = "PARKHERO-"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type testAPI struct {
	t      *testing.T
	e      *echo.Echo
	store  *memstore.Store
	now    time.Time
	direct model.Facility
	p2p    model.Facility
	other  model.Facility
}

func newAPI(t *testing.T) *testAPI {
	t.Helper()
	st := memstore.New()
	host := hostID
	a := &testAPI{t: t, store: st, now: t0}

	a.direct = st.AddFacility(model.Facility{Name: directFacility, Kind: "mall", OnboardingType: model.OnboardingEnterprise})
	fl := st.AddFloor(a.direct.ID, "B1")
	st.AddSpot(model.Spot{FloorID: fl.ID, Code: "A-2", DistanceFromEntry: 20})
	st.AddSpot(model.Spot{FloorID: fl.ID, Code: "A-1", DistanceFromEntry: 5, Verified: true})

	a.p2p = st.AddFacility(model.Facility{Name: "Driveway 7", Kind: "lot", OnboardingType: model.OnboardingP2P, OwnerID: &host})
	pfl := st.AddFloor(a.p2p.ID, "G")
	st.AddSpot(model.Spot{FloorID: pfl.ID, Code: "D-1", DistanceFromEntry: 1})

	a.other = st.AddFacility(model.Facility{Name: otherFacility, Kind: "office", OnboardingType: model.OnboardingSmall})
	ofl := st.AddFloor(a.other.ID, "P1")
	st.AddSpot(model.Spot{FloorID: ofl.ID, Code: "T-1", DistanceFromEntry: 3})

	directID, otherID := a.direct.ID, a.other.ID
	st.AddDevice(model.Device{Code: mallGate, Type: model.DeviceBarrier, BoundFacilityID: &directID})
	st.AddDevice(model.Device{Code: techParkGate, Type: model.DeviceBarrier, BoundFacilityID: &otherID})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return a.now }
	bookings := service.NewBookingService(st, nil, log)
	bookings.Now = clock
	access := service.NewAccessValidator(st, "", log)
	access.Now = clock

	e := router.New(log)
	router.RegisterRoutes(e)
	router.RegisterBookings(e, handler.NewBookingHandler(bookings, access, log), secret)
	router.RegisterAccess(e, handler.NewAccessHandler(access, log),
		middleware.NewTokenBucket(config.RateLimitConfig{}, nil, log))
	router.RegisterFacilities(e, handler.NewFacilityHandler(service.NewFacilityService(st), log),
		middleware.NewRedisCache(config.CacheConfig{}, nil))
	a.e = e
	return a
}

func (a *testAPI) token(uid uint64, role string) string {
	a.t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, role, 5)
	require.NoError(a.t, err)
	return tok.Token
}

func (a *testAPI) do(method, path, token, body string) (int, map[string]interface{}) {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (a *testAPI) createBooking(uid, facilityID uint64, hours float64) (int, map[string]interface{}) {
	a.t.Helper()
	body := fmt.Sprintf(`{"facility_id":%d,"duration_hours":%g}`, facilityID, hours)
	return a.do(http.MethodPost, "/v1/bookings", a.token(uid, model.RoleUser), body)
}

func bookingPath(b map[string]interface{}, suffix string) string {
	return fmt.Sprintf("/v1/bookings/%d%s", uint64(b["id"].(float64)), suffix)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCreateBooking_DirectFacility(t *testing.T) {
	a := newAPI(t)
	code, b := a.createBooking(requester, a.direct.ID, 2)
	require.Equal(t, http.StatusCreated, code, b)

	assert.Equal(t, string(model.BookingReserved), b["status"])
	assert.Equal(t, true, b["active"])
	assert.Len(t, b["access_code"], 6)
	assert.NotContains(t, b, "host_id")
	assert.Equal(t, float64(requester), b["user_id"])
}

func TestCreateBooking_RequiresToken(t *testing.T) {
	a := newAPI(t)
	code, _ := a.do(http.MethodPost, "/v1/bookings", "", `{"facility_id":1,"duration_hours":2}`)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCreateBooking_ValidationErrors(t *testing.T) {
	a := newAPI(t)

	code, body := a.createBooking(requester, a.direct.ID, 0)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(service.KindValidation), body["kind"])

	code, body = a.createBooking(requester, a.direct.ID, 30)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(service.KindValidation), body["kind"])

	code, body = a.do(http.MethodPost, "/v1/bookings", a.token(requester, model.RoleUser), `{"facility_id":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(service.KindValidation), body["kind"])
}

func TestCreateBooking_NoCapacity(t *testing.T) {
	a := newAPI(t)
	code, _ := a.createBooking(requester, a.other.ID, 2)
	require.Equal(t, http.StatusCreated, code)

	code, body := a.createBooking(stranger, a.other.ID, 1)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(service.KindNoCapacity), body["kind"])
}

func TestP2PApprovalFlow(t *testing.T) {
	a := newAPI(t)
	code, b := a.createBooking(requester, a.p2p.ID, 3)
	require.Equal(t, http.StatusCreated, code, b)
	assert.Equal(t, string(model.BookingPendingApproval), b["status"])
	assert.Equal(t, float64(hostID), b["host_id"])

	code, body := a.do(http.MethodPost, bookingPath(b, "/approve"), a.token(requester, model.RoleUser), "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, string(service.KindNotAuthorized), body["kind"])

	code, body = a.do(http.MethodPost, bookingPath(b, "/approve"), a.token(hostID, model.RoleUser), "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, string(model.BookingReserved), body["status"])

	code, body = a.do(http.MethodPost, bookingPath(b, "/reject"), a.token(hostID, model.RoleUser), "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(service.KindInvalidState), body["kind"])
}

func TestRejectStoresReason(t *testing.T) {
	a := newAPI(t)
	_, b := a.createBooking(requester, a.p2p.ID, 1)

	code, body := a.do(http.MethodPost, bookingPath(b, "/reject"), a.token(hostID, model.RoleUser), `{"reason":"driveway in use"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, string(model.BookingRejected), body["status"])
	assert.Equal(t, "driveway in use", body["rejection_reason"])
}

func TestCancelAndComplete(t *testing.T) {
	a := newAPI(t)
	_, first := a.createBooking(requester, a.direct.ID, 1)
	_, second := a.createBooking(requester, a.direct.ID, 1)

	code, body := a.do(http.MethodPost, bookingPath(first, "/cancel"), a.token(stranger, model.RoleUser), "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, string(service.KindNotAuthorized), body["kind"])

	code, body = a.do(http.MethodPost, bookingPath(first, "/cancel"), a.token(requester, model.RoleUser), "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, string(model.BookingCancelled), body["status"])

	code, body = a.do(http.MethodPost, bookingPath(first, "/cancel"), a.token(requester, model.RoleUser), "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(service.KindInvalidState), body["kind"])

	code, _ = a.do(http.MethodPost, bookingPath(second, "/complete"), a.token(requester, model.RoleUser), "")
	assert.Equal(t, http.StatusForbidden, code)

	code, body = a.do(http.MethodPost, bookingPath(second, "/complete"), a.token(adminID, model.RoleAdmin), "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, string(model.BookingCompleted), body["status"])
}

func TestGetAndListBookings(t *testing.T) {
	a := newAPI(t)
	_, b := a.createBooking(requester, a.direct.ID, 1)
	_, other := a.createBooking(requester, a.direct.ID, 1)
	code, _ := a.do(http.MethodPost, bookingPath(other, "/cancel"), a.token(requester, model.RoleUser), "")
	require.Equal(t, http.StatusOK, code)

	code, body := a.do(http.MethodGet, bookingPath(b, ""), a.token(requester, model.RoleUser), "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, b["access_code"], body["access_code"])

	code, _ = a.do(http.MethodGet, bookingPath(b, ""), a.token(stranger, model.RoleUser), "")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = a.do(http.MethodGet, "/v1/bookings/abc", a.token(requester, model.RoleUser), "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(http.MethodGet, "/v1/bookings/999999", a.token(requester, model.RoleUser), "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = a.do(http.MethodGet, "/v1/my-bookings", a.token(requester, model.RoleUser), "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["bookings"], 2)

	code, body = a.do(http.MethodGet, "/v1/my-bookings?active_only=true", a.token(requester, model.RoleUser), "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["bookings"], 1)
}

func TestAccessPayloadAndValidation(t *testing.T) {
	a := newAPI(t)
	_, b := a.createBooking(requester, a.direct.ID, 2)
	accessCode := b["access_code"].(string)

	code, body := a.do(http.MethodGet, bookingPath(b, "/access"), a.token(requester, model.RoleUser), "")
	require.Equal(t, http.StatusOK, code, body)
	payload := body["payload"].(string)
	assert.Equal(t, fmt.Sprintf("%s%s-%d", qrPayloadPrefix, accessCode, uint64(b["id"].(float64))), payload)

	code, _ = a.do(http.MethodGet, bookingPath(b, "/access"), a.token(stranger, model.RoleUser), "")
	assert.Equal(t, http.StatusForbidden, code)

	code, body = a.do(http.MethodPost, "/v1/access/validate", "", fmt.Sprintf(`{"access_code":%q}`, accessCode))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, b["id"], body["booking_id"])
	assert.Equal(t, "A-1", body["spot_code"])
	assert.Equal(t, "B1", body["floor"])
	assert.Equal(t, directFacility, body["facility"])
	assert.Equal(t, float64(2*3600), body["time_remaining_seconds"])

	code, body = a.do(http.MethodPost, "/v1/access/barrier", "",
		fmt.Sprintf(`{"qr_code":%q,"device_code":%q}`, payload, mallGate))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, service.ActionOpenBarrier, body["action"])
	assert.Equal(t, float64(2), body["duration_hours"])
	assert.Equal(t, float64(1), body["spots_available"])

	code, body = a.do(http.MethodPost, "/v1/access/barrier", "",
		fmt.Sprintf(`{"qr_code":%q,"device_code":%q}`, payload, techParkGate))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, string(service.KindCrossFacility), body["kind"])
	assert.Equal(t, "Ticket not valid for this facility (Go to Central Mall)", body["error"])

	a.now = t0.Add(2 * time.Hour)
	code, body = a.do(http.MethodPost, "/v1/access/validate", "", fmt.Sprintf(`{"access_code":%q}`, accessCode))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, string(service.KindInvalidState), body["kind"])
}

func TestAccessValidation_BadRequests(t *testing.T) {
	a := newAPI(t)

	code, body := a.do(http.MethodPost, "/v1/access/validate", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(service.KindValidation), body["kind"])

	code, body = a.do(http.MethodPost, "/v1/access/validate", "", `{"access_code":"ZZZZZZ"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "Invalid access code", body["error"])

	code, body = a.do(http.MethodPost, "/v1/access/barrier", "", `{"qr_code":"PARKHERO-ABC123-1","device_code":"nope"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Invalid barrier device", body["error"])

	code, body = a.do(http.MethodPost, "/v1/access/barrier", "", fmt.Sprintf(`{"qr_code":"garbage","device_code":%q}`, mallGate))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Invalid QR format", body["error"])
}

func TestFacilityStats(t *testing.T) {
	a := newAPI(t)
	_, _ = a.createBooking(requester, a.direct.ID, 1)

	code, body := a.do(http.MethodGet, fmt.Sprintf("/v1/facilities/%d/stats", a.direct.ID), "", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(2), body["total_spots"])
	assert.Equal(t, float64(1), body["available"])
	assert.Equal(t, float64(1), body["reserved"])
	assert.Equal(t, float64(50), body["verification_rate"])
	assert.Equal(t, float64(95), body["confidence_score"])
	assert.Equal(t, []interface{}{service.BadgeHighConfidence, service.BadgeEnterprise,
		service.BadgePartiallyVerified, service.BadgeAvailableNow}, body["badges"])

	code, body = a.do(http.MethodGet, "/v1/facilities/999999/stats", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, string(service.KindNotFound), body["kind"])
}

func TestFacilitySpots(t *testing.T) {
	a := newAPI(t)
	list, err := a.store.ListFacilitySpots(context.Background(), a.direct.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	nearest := list[0].ID
	a.store.AddDevice(model.Device{Code: "SENSOR-A1", Type: model.DeviceSensor, BoundSpotID: &nearest})

	code, body := a.do(http.MethodGet, fmt.Sprintf("/v1/facilities/%d/spots", a.direct.ID), "", "")
	require.Equal(t, http.StatusOK, code, body)
	spots, ok := body["spots"].([]interface{})
	require.True(t, ok, body)
	require.Len(t, spots, 2)

	first := spots[0].(map[string]interface{})
	assert.Equal(t, "A-1", first["code"])
	assert.Equal(t, "B1", first["floor"])
	assert.Equal(t, true, first["has_sensor"])
	assert.Equal(t, service.ConfidenceHigh, first["confidence"])
	second := spots[1].(map[string]interface{})
	assert.Equal(t, "A-2", second["code"])
	assert.Equal(t, service.ConfidenceLow, second["confidence"])

	code, body = a.do(http.MethodGet, "/v1/facilities/999999/spots", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, string(service.KindNotFound), body["kind"])
}
