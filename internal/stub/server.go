// Package stub is a self-contained in-memory implementation of the EVV
// backend's REST surface. It exists as a development aid and as the harness
// for end-to-end tests; the production backend is a separate system.
package stub

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/farganamar/evv-portal/internal/config"
	"github.com/farganamar/evv-portal/internal/model"
)

// BypassCode is the verification code the stub accepts for check-in.
const BypassCode = "0000"

type Server struct {
	cfg   config.Config
	store *Store
}

func NewServer(cfg config.Config, store *Store) *Server {
	return &Server{cfg: cfg, store: store}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/v1/evv/user/login", s.handleLogin)
	r.With(s.authMiddleware).Get("/v1/evv/appointment/list", s.handleListAppointments)
	r.With(s.authMiddleware).Get("/v1/evv/appointment/{appointmentId}", s.handleGetAppointment)
	r.With(s.authMiddleware).Get("/v1/evv/appointment/{appointmentId}/logs", s.handleGetLogs)
	r.With(s.authMiddleware).Post("/v1/evv/appointment/check-in", s.handleCheckIn)
	r.With(s.authMiddleware).Post("/v1/evv/appointment/check-out", s.handleCheckOut)
	r.With(s.authMiddleware).Post("/v1/evv/appointment/note", s.handleNote)
	r.With(s.authMiddleware).Post("/v1/evv/seed/appointment", s.handleSeed)

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The portal sends the raw token value, no Bearer prefix.
		token := strings.TrimSpace(r.Header.Get("Authorization"))
		if token == "" {
			writeEnvelope(w, http.StatusUnauthorized, nil, "missing token", http.StatusUnauthorized)
			return
		}
		claims, err := ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			writeEnvelope(w, http.StatusUnauthorized, nil, "invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*Claims)
	return claims
}

// Handlers

type loginRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeEnvelope(w, http.StatusOK, nil, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeEnvelope(w, http.StatusOK, nil, "username is required", http.StatusBadRequest)
		return
	}

	user := s.store.UpsertUser(req.Username)
	accessToken, issuedAt, expiresAt, err := NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.TokenTTL, user)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, nil, "token issuance failed", http.StatusInternalServerError)
		return
	}
	tokens := model.AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: uuid.NewString(),
		ExpiresAt:    expiresAt,
		IssuedAt:     issuedAt,
	}
	writeEnvelope(w, http.StatusOK, tokens, "login successful", http.StatusOK)
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	status := model.AppointmentStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeEnvelope(w, http.StatusOK, nil, "invalid status filter", http.StatusBadRequest)
		return
	}
	appointments := s.store.ListAppointments(claims.UserID, status)
	writeEnvelope(w, http.StatusOK, appointments, "ok", http.StatusOK)
}

func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	appointmentID := chi.URLParam(r, "appointmentId")
	appt, ok := s.store.Appointment(appointmentID)
	if !ok || appt.CaregiverID != claims.UserID {
		// Missing entities surface as data: null with a success code; the
		// portal renders a distinct not-found state from this shape.
		writeEnvelope(w, http.StatusOK, nil, "appointment not found", http.StatusOK)
		return
	}
	writeEnvelope(w, http.StatusOK, appt, "ok", http.StatusOK)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	appointmentID := chi.URLParam(r, "appointmentId")
	appt, ok := s.store.Appointment(appointmentID)
	if !ok || appt.CaregiverID != claims.UserID {
		writeEnvelope(w, http.StatusOK, nil, "appointment not found", http.StatusOK)
		return
	}
	writeEnvelope(w, http.StatusOK, s.store.Logs(appointmentID), "ok", http.StatusOK)
}

type verificationRequest struct {
	AppointmentID    string  `json:"appointment_id"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Notes            string  `json:"notes"`
	VerificationCode string  `json:"verification_code"`
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req verificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeEnvelope(w, http.StatusOK, nil, "invalid request body", http.StatusBadRequest)
		return
	}
	appt, ok := s.store.Appointment(req.AppointmentID)
	if !ok || appt.CaregiverID != claims.UserID {
		writeEnvelope(w, http.StatusOK, nil, "appointment not found", http.StatusNotFound)
		return
	}
	if appt.Status != model.StatusScheduled {
		writeEnvelope(w, http.StatusOK, nil, "appointment is not scheduled", http.StatusConflict)
		return
	}
	if req.VerificationCode != BypassCode {
		writeEnvelope(w, http.StatusOK, nil, "invalid verification code", http.StatusUnauthorized)
		return
	}

	updated, _ := s.store.Transition(req.AppointmentID, model.StatusInProgress, model.AppointmentLog{
		AppointmentID: req.AppointmentID,
		CaregiverID:   claims.UserID,
		LogType:       model.LogCheckIn,
		LogData:       map[string]interface{}{"device": "portal", "method": "verification_code"},
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Timestamp:     time.Now().UTC(),
		Notes:         req.Notes,
	})
	writeEnvelope(w, http.StatusOK, updated, "checked in", http.StatusOK)
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req verificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeEnvelope(w, http.StatusOK, nil, "invalid request body", http.StatusBadRequest)
		return
	}
	appt, ok := s.store.Appointment(req.AppointmentID)
	if !ok || appt.CaregiverID != claims.UserID {
		writeEnvelope(w, http.StatusOK, nil, "appointment not found", http.StatusNotFound)
		return
	}
	if appt.Status != model.StatusInProgress {
		writeEnvelope(w, http.StatusOK, nil, "appointment is not in progress", http.StatusConflict)
		return
	}

	updated, _ := s.store.Transition(req.AppointmentID, model.StatusCompleted, model.AppointmentLog{
		AppointmentID: req.AppointmentID,
		CaregiverID:   claims.UserID,
		LogType:       model.LogCheckOut,
		LogData:       map[string]interface{}{"device": "portal"},
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Timestamp:     time.Now().UTC(),
		Notes:         req.Notes,
	})
	writeEnvelope(w, http.StatusOK, updated, "checked out", http.StatusOK)
}

type noteRequest struct {
	AppointmentID string `json:"appointment_id"`
	ActivityType  string `json:"activity_type"`
	Notes         string `json:"notes"`
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeEnvelope(w, http.StatusOK, nil, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ActivityType) == "" || strings.TrimSpace(req.Notes) == "" {
		writeEnvelope(w, http.StatusOK, nil, "activity type and notes are required", http.StatusBadRequest)
		return
	}
	appt, ok := s.store.Appointment(req.AppointmentID)
	if !ok || appt.CaregiverID != claims.UserID {
		writeEnvelope(w, http.StatusOK, nil, "appointment not found", http.StatusNotFound)
		return
	}

	entry := model.AppointmentLog{
		AppointmentID: req.AppointmentID,
		CaregiverID:   claims.UserID,
		LogType:       model.LogNote,
		LogData:       map[string]interface{}{"activity_type": req.ActivityType},
		Latitude:      appt.ClientDetail.Latitude,
		Longitude:     appt.ClientDetail.Longitude,
		Timestamp:     time.Now().UTC(),
		Notes:         req.Notes,
	}
	s.store.AppendLog(req.AppointmentID, entry)
	writeEnvelope(w, http.StatusOK, entry, "note recorded", http.StatusOK)
}

type seedRequest struct {
	Count int `json:"count"`
}

var seedClients = []model.ClientDetail{
	{Name: "Margaret Holt", Phone: "+1-555-0101", Address: "14 Birchwood Lane", Latitude: 37.7749, Longitude: -122.4194},
	{Name: "Raymond Okafor", Phone: "+1-555-0102", Address: "88 Cedar Court", Latitude: 37.8044, Longitude: -122.2712},
	{Name: "Lucille Tran", Phone: "+1-555-0103", Address: "452 Harbor View Dr", Latitude: 37.6879, Longitude: -122.4702, Note: "Ring twice, hard of hearing"},
	{Name: "Ernest Vargas", Phone: "+1-555-0104", Address: "7 Quail Hollow Rd"},
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req seedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeEnvelope(w, http.StatusOK, nil, "invalid request body", http.StatusBadRequest)
		return
	}
	count := req.Count
	if count <= 0 {
		count = 3
	}
	if count > 20 {
		count = 20
	}

	now := time.Now().UTC()
	created := make([]model.Appointment, 0, count)
	for i := 0; i < count; i++ {
		client := seedClients[i%len(seedClients)]
		client.CreatedAt = now
		client.UpdatedAt = now
		start := now.Add(time.Duration(i+1) * time.Hour)
		appt := model.Appointment{
			AppointmentID: uuid.NewString(),
			StartTime:     start,
			EndTime:       start.Add(time.Hour),
			Status:        model.StatusScheduled,
			Notes:         "Routine home visit",
			CreatedAt:     now,
			UpdatedAt:     now,
			CaregiverID:   claims.UserID,
			ClientID:      uuid.NewString(),
			ClientDetail:  client,
		}
		s.store.PutAppointment(appt)
		created = append(created, appt)
	}
	writeEnvelope(w, http.StatusOK, created, "appointments seeded", http.StatusOK)
}

// Helpers

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type envelope struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

func writeEnvelope(w http.ResponseWriter, httpStatus int, data interface{}, message string, code int) {
	writeJSON(w, httpStatus, envelope{Data: data, Message: message, Code: code})
}
