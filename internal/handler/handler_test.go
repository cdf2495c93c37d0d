package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/holidaibutler/texelmaps-booking/internal/handler"
	"github.com/holidaibutler/texelmaps-booking/internal/model"
	"github.com/holidaibutler/texelmaps-booking/internal/router"
	"github.com/holidaibutler/texelmaps-booking/internal/service"
	"github.com/holidaibutler/texelmaps-booking/internal/store"
	"github.com/holidaibutler/texelmaps-booking/internal/utils"
)

const testJWTSecret = "handler-test-secret"

// newTestServer wires the full API against the in-memory store, with
// caching and rate limiting disabled (nil Redis client).
func newTestServer(t *testing.T) (*echo.Echo, *store.Memory, string) {
	t.Helper()
	mem := store.NewMemory()
	today := time.Now().UTC().Format("2006-01-02")
	mem.AddPOI(model.POI{ID: 42, Name: "Ecomare", Bookable: true, BasePriceCents: 1750, Currency: "EUR"})
	mem.SeedSlot(model.SlotKey{POIID: 42, Date: today, Timeslot: "10:00-12:00"}, 10)

	manager := service.NewReservationManager(mem)
	issuer := service.NewTicketIssuer([]byte("test-ticket-secret"), mem)
	orchestrator := service.NewBookingOrchestrator(manager, mem, mem, issuer, service.StubPaymentCollaborator{}, service.LogNotifier{}, "https://texelmaps.example/return")

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterPublic(e,
		handler.NewAvailabilityHandler(manager),
		handler.NewBookingHandler(orchestrator),
		handler.NewPOIHandler(mem),
		nil,
	)
	router.RegisterValidation(e,
		handler.NewDeviceAuthHandler(nil, testJWTSecret, 60),
		handler.NewValidateHandler(issuer, mem),
		testJWTSecret,
	)
	router.RegisterOps(e, handler.NewOpsHandler(mem), testJWTSecret)
	return e, mem, today
}

func doJSON(e *echo.Echo, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	e, _, _ := newTestServer(t)
	rec := doJSON(e, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAvailabilityEndpoint(t *testing.T) {
	e, _, today := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/v1/availability/42?date="+today+"&timeslot=10:00-12:00", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var snap model.AvailabilitySnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.POIID != 42 || snap.TotalCapacity != 10 || snap.Available != 10 {
		t.Fatalf("snapshot = %+v", snap)
	}

	if rec := doJSON(e, http.MethodGet, "/v1/availability/42?date="+today+"&timeslot=18:00-20:00", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown slot status = %d, want 404", rec.Code)
	}
	if rec := doJSON(e, http.MethodGet, "/v1/availability/42?date=notadate", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d, want 400", rec.Code)
	}
	if rec := doJSON(e, http.MethodGet, "/v1/availability/zero?date="+today, "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad poi status = %d, want 400", rec.Code)
	}
}

func TestPOIEndpoints(t *testing.T) {
	e, _, _ := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/v1/pois", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var pois []model.POI
	if err := json.Unmarshal(rec.Body.Bytes(), &pois); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pois) != 1 || pois[0].ID != 42 {
		t.Fatalf("pois = %+v, want just 42", pois)
	}

	if rec := doJSON(e, http.MethodGet, "/v1/pois/42", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if rec := doJSON(e, http.MethodGet, "/v1/pois/999", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown poi status = %d, want 404", rec.Code)
	}
}

func startBookingBody(today string, qty int) string {
	return fmt.Sprintf(`{"poi_id":42,"date":%q,"timeslot":"10:00-12:00","quantity":%d,"name":"A Visser","email":"a@example.com"}`, today, qty)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	e, _, today := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/v1/bookings", startBookingBody(today, 2), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body.String())
	}
	var started struct {
		Booking    model.Booking `json:"booking"`
		PaymentURL string        `json:"payment_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if started.Booking.ID == "" || started.PaymentURL == "" {
		t.Fatalf("incomplete start response: %s", rec.Body.String())
	}

	// Payment webhook confirms and issues tickets; a retry answers
	// identically.
	confirmPath := "/v1/bookings/" + started.Booking.ID + "/confirm"
	rec = doJSON(e, http.MethodPost, confirmPath, `{"payment_tx_id":"tx-http-1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result service.BookingResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode confirm: %v", err)
	}
	if result.Booking.Status != model.BookingConfirmed || len(result.Tickets) != 2 {
		t.Fatalf("confirm result = %s with %d tickets", result.Booking.Status, len(result.Tickets))
	}
	if rec := doJSON(e, http.MethodPost, confirmPath, `{"payment_tx_id":"tx-http-1"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("retry confirm status = %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/v1/bookings/"+started.Booking.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	// Confirmed bookings cannot back out through the cancel webhook,
	// but the call itself stays 200 because release is idempotent.
	if rec := doJSON(e, http.MethodGet, "/v1/bookings/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown booking status = %d, want 404", rec.Code)
	}
}

func TestBookingValidationErrors(t *testing.T) {
	e, _, today := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing poi", `{"date":"` + today + `","quantity":1,"name":"A","email":"a@b"}`},
		{"bad date", `{"poi_id":42,"date":"14-07-2026","quantity":1,"name":"A","email":"a@b"}`},
		{"zero quantity", startBookingBody(today, 0)},
		{"oversized party", startBookingBody(today, 21)},
		{"missing guest", `{"poi_id":42,"date":"` + today + `","quantity":1}`},
	}
	for _, tc := range cases {
		if rec := doJSON(e, http.MethodPost, "/v1/bookings", tc.body, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}

	// More than the slot holds is a conflict, not a client error.
	if rec := doJSON(e, http.MethodPost, "/v1/bookings", startBookingBody(today, 11), nil); rec.Code != http.StatusConflict {
		t.Errorf("oversell: status = %d, want 409", rec.Code)
	}
}

func TestValidateRequiresValidatorToken(t *testing.T) {
	e, mem, today := newTestServer(t)

	// Confirm a booking so there is a ticket to scan.
	rec := doJSON(e, http.MethodPost, "/v1/bookings", startBookingBody(today, 1), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d", rec.Code)
	}
	var started struct {
		Booking model.Booking `json:"booking"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec = doJSON(e, http.MethodPost, "/v1/bookings/"+started.Booking.ID+"/confirm", `{"payment_tx_id":"tx-v"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d", rec.Code)
	}
	tickets, err := mem.TicketsByBooking(context.Background(), started.Booking.ID)
	if err != nil || len(tickets) != 1 {
		t.Fatalf("tickets = %v, %v", tickets, err)
	}
	scanBody := fmt.Sprintf(`{"code":%q,"poi_id":42}`, tickets[0].Code)

	// No token.
	if rec := doJSON(e, http.MethodPost, "/v1/validate", scanBody, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}

	tok, err := utils.NewDeviceToken(testJWTSecret, "gate-1", 42, 60)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	auth := map[string]string{"Authorization": "Bearer " + tok.Token}

	rec = doJSON(e, http.MethodPost, "/v1/validate", scanBody, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan status = %d, body %s", rec.Code, rec.Body.String())
	}
	var vres service.ValidationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &vres); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !vres.Valid {
		t.Fatalf("scan result = %+v, want valid", vres)
	}

	// Second scan of the same code is turned away.
	rec = doJSON(e, http.MethodPost, "/v1/validate", scanBody, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("rescan status = %d", rec.Code)
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &vres)
	if vres.Valid || vres.Reason != "already used" {
		t.Fatalf("rescan result = %+v, want already used", vres)
	}

	// A token signed with the wrong secret is rejected.
	bad, _ := utils.NewDeviceToken("wrong-secret", "gate-1", 42, 60)
	if rec := doJSON(e, http.MethodPost, "/v1/validate", scanBody, map[string]string{"Authorization": "Bearer " + bad.Token}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged token status = %d, want 401", rec.Code)
	}
}

func TestDeviceLoginWithoutDirectory(t *testing.T) {
	e, _, _ := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/v1/auth/device", `{"device_id":"gate-1","key":"k"}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestOpsReversalsRequiresOperator(t *testing.T) {
	e, _, _ := newTestServer(t)

	if rec := doJSON(e, http.MethodGet, "/v1/ops/reversals", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}

	// A VALIDATOR token is authenticated but not authorised.
	val, _ := utils.NewDeviceToken(testJWTSecret, "gate-1", 42, 60)
	if rec := doJSON(e, http.MethodGet, "/v1/ops/reversals", "", map[string]string{"Authorization": "Bearer " + val.Token}); rec.Code != http.StatusForbidden {
		t.Fatalf("validator token status = %d, want 403", rec.Code)
	}

	// An OPERATOR token (minted by the back office with the shared
	// secret) gets through.
	auth := map[string]string{"Authorization": "Bearer " + operatorToken(t)}
	rec := doJSON(e, http.MethodGet, "/v1/ops/reversals", "", auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("operator token status = %d, body %s", rec.Code, rec.Body.String())
	}
	var listing struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if listing.Count != 0 {
		t.Fatalf("count = %d, want 0 on a fresh store", listing.Count)
	}

	if rec := doJSON(e, http.MethodGet, "/v1/ops/bookings/TXM-NOPE1234", "", auth); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown reference status = %d, want 404", rec.Code)
	}
}

// operatorToken mints an HS256 token with the OPERATOR role the way
// the back office does.
func operatorToken(t *testing.T) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  "backoffice-1",
		"role": "OPERATOR",
		"exp":  time.Now().UTC().Add(time.Hour).Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign operator token: %v", err)
	}
	return signed
}

// unavailableStore answers every availability query with a lock wait
// timeout, as a saturated database would.
type unavailableStore struct {
	*store.Memory
}

func (s *unavailableStore) Availability(context.Context, model.SlotKey) (model.AvailabilitySlot, error) {
	return model.AvailabilitySlot{}, &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded; try restarting transaction"}
}

func TestAvailabilityStoreOutageAnswers503(t *testing.T) {
	manager := service.NewReservationManager(&unavailableStore{Memory: store.NewMemory()})
	e := echo.New()
	e.GET("/v1/availability/:poiId", handler.NewAvailabilityHandler(manager).Get)

	req := httptest.NewRequest(http.MethodGet, "/v1/availability/42?date=2026-07-14", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
