package stub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farganamar/evv-portal/internal/config"
	"github.com/farganamar/evv-portal/internal/model"
)

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret", JWTIssuer: "test-issuer", TokenTTL: time.Hour}
}

type envelopeBody struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, payload interface{}) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()
	body := bytes.NewBuffer(nil)
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var env envelopeBody
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return rec, env
}

func login(t *testing.T, handler http.Handler, username string) model.AuthTokens {
	t.Helper()
	rec, env := doJSON(t, handler, http.MethodPost, "/v1/evv/user/login", "", map[string]string{"username": username})
	if rec.Code != http.StatusOK || env.Code != 200 {
		t.Fatalf("login failed: http %d, envelope %+v", rec.Code, env)
	}
	var tokens model.AuthTokens
	if err := json.Unmarshal(env.Data, &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("missing token pair: %+v", tokens)
	}
	if !tokens.ExpiresAt.After(tokens.IssuedAt) {
		t.Fatalf("expiry must follow issuance: %+v", tokens)
	}
	return tokens
}

func TestLoginRequiresUsername(t *testing.T) {
	handler := NewServer(testConfig(), NewStore()).Router()
	rec, env := doJSON(t, handler, http.MethodPost, "/v1/evv/user/login", "", map[string]string{"username": "  "})
	if rec.Code != http.StatusOK {
		t.Fatalf("application failures ride on HTTP 200, got %d", rec.Code)
	}
	if env.Code != http.StatusBadRequest {
		t.Fatalf("expected envelope code 400, got %d", env.Code)
	}
}

func TestAuthRejectionIsHTTP401(t *testing.T) {
	handler := NewServer(testConfig(), NewStore()).Router()
	rec, _ := doJSON(t, handler, http.MethodGet, "/v1/evv/appointment/list", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected HTTP 401 for bad token, got %d", rec.Code)
	}
	rec, _ = doJSON(t, handler, http.MethodGet, "/v1/evv/appointment/list", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected HTTP 401 for missing token, got %d", rec.Code)
	}
}

func TestSeedThenListAndVisitLifecycle(t *testing.T) {
	handler := NewServer(testConfig(), NewStore()).Router()
	tokens := login(t, handler, "caregiver1")
	token := tokens.AccessToken

	_, env := doJSON(t, handler, http.MethodPost, "/v1/evv/seed/appointment", token, map[string]int{"count": 2})
	if env.Code != 200 {
		t.Fatalf("seed failed: %+v", env)
	}
	var seeded []model.Appointment
	if err := json.Unmarshal(env.Data, &seeded); err != nil {
		t.Fatalf("decode seeded: %v", err)
	}
	if len(seeded) != 2 {
		t.Fatalf("expected 2 seeded appointments, got %d", len(seeded))
	}

	_, env = doJSON(t, handler, http.MethodGet, "/v1/evv/appointment/list?status=SCHEDULED", token, nil)
	var listed []model.Appointment
	if err := json.Unmarshal(env.Data, &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 scheduled appointments, got %d", len(listed))
	}

	id := listed[0].AppointmentID

	// Wrong code is rejected with the envelope code the portal keys on.
	_, env = doJSON(t, handler, http.MethodPost, "/v1/evv/appointment/check-in", token, map[string]interface{}{
		"appointment_id": id, "latitude": 37.0, "longitude": -122.0, "verification_code": "9999",
	})
	if env.Code != http.StatusUnauthorized || env.Message != "invalid verification code" {
		t.Fatalf("expected code 401 invalid verification code, got %+v", env)
	}

	_, env = doJSON(t, handler, http.MethodPost, "/v1/evv/appointment/check-in", token, map[string]interface{}{
		"appointment_id": id, "latitude": 37.0, "longitude": -122.0, "verification_code": BypassCode,
	})
	if env.Code != 200 {
		t.Fatalf("check-in failed: %+v", env)
	}

	// Check-in is not repeatable once the appointment moved on.
	_, env = doJSON(t, handler, http.MethodPost, "/v1/evv/appointment/check-in", token, map[string]interface{}{
		"appointment_id": id, "latitude": 37.0, "longitude": -122.0, "verification_code": BypassCode,
	})
	if env.Code != http.StatusConflict {
		t.Fatalf("expected conflict on double check-in, got %+v", env)
	}

	_, env = doJSON(t, handler, http.MethodPost, "/v1/evv/appointment/check-out", token, map[string]interface{}{
		"appointment_id": id, "latitude": 37.1, "longitude": -122.1,
	})
	if env.Code != 200 {
		t.Fatalf("check-out failed: %+v", env)
	}

	_, env = doJSON(t, handler, http.MethodGet, "/v1/evv/appointment/"+id+"/logs", token, nil)
	var logs []model.AppointmentLog
	if err := json.Unmarshal(env.Data, &logs); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(logs) != 2 || logs[0].LogType != model.LogCheckIn || logs[1].LogType != model.LogCheckOut {
		t.Fatalf("expected [CHECK-IN, CHECK-OUT] in timestamp order, got %+v", logs)
	}

	_, env = doJSON(t, handler, http.MethodGet, "/v1/evv/appointment/"+id, token, nil)
	var appt model.Appointment
	if err := json.Unmarshal(env.Data, &appt); err != nil {
		t.Fatalf("decode appointment: %v", err)
	}
	if appt.Status != model.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", appt.Status)
	}
}

func TestUnknownAppointmentReturnsNullData(t *testing.T) {
	handler := NewServer(testConfig(), NewStore()).Router()
	tokens := login(t, handler, "caregiver2")

	rec, env := doJSON(t, handler, http.MethodGet, "/v1/evv/appointment/does-not-exist", tokens.AccessToken, nil)
	if rec.Code != http.StatusOK || env.Code != 200 {
		t.Fatalf("missing entity must be null data on a success envelope, got http %d code %d", rec.Code, env.Code)
	}
	if string(env.Data) != "null" {
		t.Fatalf("expected null data, got %s", env.Data)
	}
}

func TestAppointmentsAreScopedToCaregiver(t *testing.T) {
	handler := NewServer(testConfig(), NewStore()).Router()
	first := login(t, handler, "caregiver3")
	second := login(t, handler, "caregiver4")

	_, env := doJSON(t, handler, http.MethodPost, "/v1/evv/seed/appointment", first.AccessToken, map[string]int{"count": 1})
	var seeded []model.Appointment
	if err := json.Unmarshal(env.Data, &seeded); err != nil {
		t.Fatalf("decode seeded: %v", err)
	}

	_, env = doJSON(t, handler, http.MethodGet, "/v1/evv/appointment/"+seeded[0].AppointmentID, second.AccessToken, nil)
	if string(env.Data) != "null" {
		t.Fatalf("another caregiver's appointment must not be visible, got %s", env.Data)
	}

	_, env = doJSON(t, handler, http.MethodGet, "/v1/evv/appointment/list", second.AccessToken, nil)
	var listed []model.Appointment
	if err := json.Unmarshal(env.Data, &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty list for other caregiver, got %d", len(listed))
	}
}

func TestNoteValidation(t *testing.T) {
	handler := NewServer(testConfig(), NewStore()).Router()
	tokens := login(t, handler, "caregiver5")

	_, env := doJSON(t, handler, http.MethodPost, "/v1/evv/appointment/note", tokens.AccessToken, map[string]string{
		"appointment_id": "whatever", "activity_type": "", "notes": "text",
	})
	if env.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing activity type, got %+v", env)
	}
}
