// Package gateway wraps every outbound call to the EVV backend. Each method
// maps to one remote operation and returns the decoded response envelope
// verbatim; interpreting the envelope code is the caller's job. The gateway
// itself only acts on session rejection (HTTP 401).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/farganamar/evv-portal/internal/model"
)

// CodeOK is the sole success sentinel in the {data, message, code} envelope
// every endpoint returns. Any other code is an application-level failure,
// even on HTTP 200.
const CodeOK = 200

type LoginResponse struct {
	Data    *model.AuthTokens `json:"data"`
	Message string            `json:"message"`
	Code    int               `json:"code"`
}

type AppointmentListResponse struct {
	Data    []model.Appointment `json:"data"`
	Message string              `json:"message"`
	Code    int                 `json:"code"`
}

type AppointmentResponse struct {
	Data    *model.Appointment `json:"data"`
	Message string             `json:"message"`
	Code    int                `json:"code"`
}

type AppointmentLogsResponse struct {
	Data    []model.AppointmentLog `json:"data"`
	Message string                 `json:"message"`
	Code    int                    `json:"code"`
}

type ActionResponse struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

// VerificationRequest is built per check-in/out attempt and never persisted.
type VerificationRequest struct {
	AppointmentID    string  `json:"appointment_id"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Notes            string  `json:"notes,omitempty"`
	VerificationCode string  `json:"verification_code,omitempty"`
}

type ActivityReport struct {
	AppointmentID string `json:"appointment_id"`
	ActivityType  string `json:"activity_type"`
	Notes         string `json:"notes"`
}

type SeedRequest struct {
	Count int `json:"count"`
}

type Client struct {
	baseURL      string
	http         *http.Client
	accessToken  func() string
	onAuthReject func()
}

// New builds a gateway client. accessToken supplies the current raw token
// ("" omits the Authorization header); onAuthReject runs when the backend
// rejects the session on an authenticated call.
func New(baseURL string, timeout time.Duration, accessToken func() string, onAuthReject func()) *Client {
	return &Client{
		baseURL:      baseURL,
		http:         &http.Client{Timeout: timeout},
		accessToken:  accessToken,
		onAuthReject: onAuthReject,
	}
}

func (c *Client) Login(ctx context.Context, username string) (*LoginResponse, error) {
	payload := map[string]string{"username": username}
	var resp LoginResponse
	// Login failures must not clear an existing session, so the 401 hook is
	// suppressed for this call.
	if err := c.do(ctx, http.MethodPost, "/v1/evv/user/login", nil, payload, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListAppointments(ctx context.Context, status model.AppointmentStatus) (*AppointmentListResponse, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", string(status))
	}
	var resp AppointmentListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/evv/appointment/list", query, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetAppointment(ctx context.Context, appointmentID string) (*AppointmentResponse, error) {
	var resp AppointmentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/evv/appointment/"+url.PathEscape(appointmentID), nil, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetAppointmentLogs(ctx context.Context, appointmentID string) (*AppointmentLogsResponse, error) {
	var resp AppointmentLogsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/evv/appointment/"+url.PathEscape(appointmentID)+"/logs", nil, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CheckIn(ctx context.Context, req VerificationRequest) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/evv/appointment/check-in", nil, req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CheckOut(ctx context.Context, req VerificationRequest) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/evv/appointment/check-out", nil, req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ReportActivity(ctx context.Context, report ActivityReport) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/evv/appointment/note", nil, report, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SeedAppointments(ctx context.Context, req SeedRequest) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/evv/seed/appointment", nil, req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}, authed bool) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	// The backend expects the raw token, not a Bearer-prefixed value.
	if token := c.accessToken(); token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if authed && c.onAuthReject != nil {
			c.onAuthReject()
		}
		return ErrUnauthorized
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return &ServerError{Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gateway: decode response: %w", err)
	}
	return nil
}
