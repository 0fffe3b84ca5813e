package model

import "time"

type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "SCHEDULED"
	StatusInProgress AppointmentStatus = "IN_PROGRESS"
	StatusCompleted  AppointmentStatus = "COMPLETED"
	StatusCancelled  AppointmentStatus = "CANCELLED"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type LogType string

const (
	LogCheckIn  LogType = "CHECK-IN"
	LogCheckOut LogType = "CHECK-OUT"
	LogNote     LogType = "NOTE"
)

// AuthTokens is the persisted token pair. Stored as-is under a single key;
// RestoredAt/expiry checks compare ExpiresAt against wall-clock time only.
type AuthTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	IssuedAt     time.Time `json:"issued_at"`
}

// User is the identity decoded from the access token. Read-only.
type User struct {
	UserID     string   `json:"user_id"`
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	IsVerified bool     `json:"is_verified"`
	Roles      []string `json:"roles"`
}

// ClientDetail is the embedded client snapshot on an appointment; it is never
// fetched independently. Zero latitude and longitude together mean the client
// has no on-file location.
type ClientDetail struct {
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c ClientDetail) HasLocation() bool {
	return c.Latitude != 0 || c.Longitude != 0
}

// Appointment status transitions are server-authoritative; the portal only
// triggers actions and rereads.
type Appointment struct {
	AppointmentID string            `json:"appointment_id"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	Status        AppointmentStatus `json:"status"`
	Notes         string            `json:"notes"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	CaregiverID   string            `json:"caregiver_id"`
	ClientID      string            `json:"client_id"`
	ClientDetail  ClientDetail      `json:"client_detail"`
}

// AppointmentLog is an append-only visit record, returned by the server in
// ascending timestamp order.
type AppointmentLog struct {
	AppointmentID string                 `json:"appointment_id"`
	CaregiverID   string                 `json:"caregiver_id"`
	LogType       LogType                `json:"log_type"`
	LogData       map[string]interface{} `json:"log_data"`
	Latitude      float64                `json:"latitude"`
	Longitude     float64                `json:"longitude"`
	Timestamp     time.Time              `json:"timestamp"`
	Notes         string                 `json:"notes"`
}
