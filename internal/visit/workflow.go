// Package visit implements the check-in/check-out verification workflow and
// activity note submission. The workflow is an explicit state machine with no
// rendering concern so it can be exercised directly in tests.
package visit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/farganamar/evv-portal/internal/appointment"
	"github.com/farganamar/evv-portal/internal/gateway"
	"github.com/farganamar/evv-portal/internal/geo"
	"github.com/farganamar/evv-portal/internal/model"
)

type State string

const (
	StateIdle                 State = "idle"
	StateLocationPending      State = "location_pending"
	StateAwaitingVerification State = "awaiting_verification"
	StateSubmitting           State = "submitting"
)

type Action string

const (
	ActionCheckIn  Action = "check-in"
	ActionCheckOut Action = "check-out"
)

var (
	ErrNoAppointment   = errors.New("visit: no appointment loaded")
	ErrNotOffered      = errors.New("visit: action not offered for current appointment status")
	ErrBusy            = errors.New("visit: a verification attempt is already in progress")
	ErrWrongState      = errors.New("visit: operation not valid in current state")
	ErrCancelled       = errors.New("visit: workflow cancelled")
	ErrCodeRequired    = errors.New("visit: verification code is required")
	ErrLocationMissing = errors.New("visit: no device fix and no on-file client location")
)

// ApplicationError carries an envelope failure (code != 200) on a write. The
// message is surfaced to the caregiver verbatim; the form stays populated so
// the attempt can be corrected and resubmitted.
type ApplicationError struct {
	Message string
	Code    int
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("visit: rejected by server: %s (code %d)", e.Message, e.Code)
}

// Workflow drives one appointment's verification lifecycle:
//
//	Idle -> LocationPending -> AwaitingVerification -> Submitting -> Idle
//
// A failed submission returns to AwaitingVerification with the form retained.
// Each appointment detail view owns its own instance; the workflow is not
// reentrant.
type Workflow struct {
	api        *gateway.Client
	detail     *appointment.Detail
	locator    geo.Locator
	geoTimeout time.Duration

	mu     sync.Mutex
	state  State
	action Action
	appt   *model.Appointment
	logs   []model.AppointmentLog

	// gen guards the in-flight location fix: cancellation bumps it and a
	// late-arriving fix whose generation no longer matches is discarded.
	gen       int
	cancelFix context.CancelFunc

	fix         *geo.Fix
	locationErr error

	code        string
	note        string
	lastMessage string
}

func NewWorkflow(api *gateway.Client, detail *appointment.Detail, locator geo.Locator, geoTimeout time.Duration) *Workflow {
	if geoTimeout <= 0 {
		geoTimeout = 15 * time.Second
	}
	return &Workflow{
		api:        api,
		detail:     detail,
		locator:    locator,
		geoTimeout: geoTimeout,
		state:      StateIdle,
	}
}

// Load fetches the appointment and its visit log and resets the workflow.
func (w *Workflow) Load(ctx context.Context, appointmentID string) error {
	appt, logs, err := w.detail.Load(ctx, appointmentID)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.appt = appt
	w.logs = logs
	w.reset()
	return nil
}

// Begin starts a verification attempt. It requests a single fresh location
// fix with a bounded wait and then moves to AwaitingVerification; a fix
// failure downgrades to a warning rather than blocking the attempt, since
// submission can fall back to the client's on-file coordinates.
func (w *Workflow) Begin(ctx context.Context, action Action) error {
	w.mu.Lock()
	if w.appt == nil {
		w.mu.Unlock()
		return ErrNoAppointment
	}
	if w.state != StateIdle {
		w.mu.Unlock()
		return ErrBusy
	}
	switch action {
	case ActionCheckIn:
		if !appointment.CanCheckIn(w.appt) {
			w.mu.Unlock()
			return ErrNotOffered
		}
	case ActionCheckOut:
		if !appointment.CanCheckOut(w.appt) {
			w.mu.Unlock()
			return ErrNotOffered
		}
	default:
		w.mu.Unlock()
		return ErrNotOffered
	}

	w.state = StateLocationPending
	w.action = action
	w.gen++
	gen := w.gen
	fixCtx, cancel := context.WithTimeout(ctx, w.geoTimeout)
	w.cancelFix = cancel
	locator := w.locator
	w.mu.Unlock()

	fix, err := locator.Locate(fixCtx)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen || w.state != StateLocationPending {
		// Cancelled while the fix was in flight; the late result is dropped.
		return ErrCancelled
	}
	w.cancelFix = nil
	if err != nil {
		w.fix = nil
		w.locationErr = err
	} else {
		w.fix = &fix
		w.locationErr = nil
	}
	w.state = StateAwaitingVerification
	return nil
}

// Submit validates the form locally, resolves the coordinate to send and
// calls the backend. On envelope success the appointment and its log are
// refetched (read-after-write purely by re-querying) and the workflow
// returns to Idle with all transient state cleared.
func (w *Workflow) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateAwaitingVerification {
		w.mu.Unlock()
		return ErrWrongState
	}
	if w.action == ActionCheckIn && w.code == "" {
		w.mu.Unlock()
		return ErrCodeRequired
	}

	var lat, lng float64
	switch {
	case w.fix != nil:
		lat, lng = w.fix.Latitude, w.fix.Longitude
	case w.appt.ClientDetail.HasLocation():
		lat, lng = w.appt.ClientDetail.Latitude, w.appt.ClientDetail.Longitude
	default:
		w.mu.Unlock()
		return ErrLocationMissing
	}

	req := gateway.VerificationRequest{
		AppointmentID: w.appt.AppointmentID,
		Latitude:      lat,
		Longitude:     lng,
		Notes:         w.note,
	}
	if w.action == ActionCheckIn {
		req.VerificationCode = w.code
	}
	action := w.action
	appointmentID := w.appt.AppointmentID
	w.state = StateSubmitting
	w.mu.Unlock()

	var resp *gateway.ActionResponse
	var err error
	if action == ActionCheckIn {
		resp, err = w.api.CheckIn(ctx, req)
	} else {
		resp, err = w.api.CheckOut(ctx, req)
	}
	if err != nil {
		w.fail(Describe(err))
		return err
	}
	if resp.Code != gateway.CodeOK {
		w.fail(resp.Message)
		return &ApplicationError{Message: resp.Message, Code: resp.Code}
	}

	// Status transitions are only observable by rereading; nothing is
	// predicted locally.
	appt, logs, err := w.detail.Load(ctx, appointmentID)
	if err != nil {
		w.fail(Describe(err))
		return fmt.Errorf("visit: refresh after submit: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.appt = appt
	w.logs = logs
	w.reset()
	return nil
}

// Cancel abandons the attempt before submission, discarding the captured
// fix and form fields without any network call. A location request still in
// flight is cancelled and its eventual result ignored.
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case StateLocationPending, StateAwaitingVerification:
	default:
		return ErrWrongState
	}
	w.gen++
	if w.cancelFix != nil {
		w.cancelFix()
		w.cancelFix = nil
	}
	w.reset()
	return nil
}

func (w *Workflow) fail(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastMessage = message
	w.state = StateAwaitingVerification
}

// reset clears transient attempt state. Callers hold w.mu.
func (w *Workflow) reset() {
	w.state = StateIdle
	w.action = ""
	w.fix = nil
	w.locationErr = nil
	w.code = ""
	w.note = ""
	w.lastMessage = ""
}

func (w *Workflow) SetCode(code string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.code = code
}

func (w *Workflow) SetNote(note string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.note = note
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Workflow) Action() Action {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.action
}

func (w *Workflow) Appointment() *model.Appointment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appt
}

func (w *Workflow) Logs() []model.AppointmentLog {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.logs
}

// LocationWarning reports why the device fix failed, or nil. The attempt is
// not blocked; submission falls back to the client's on-file coordinates.
func (w *Workflow) LocationWarning() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.locationErr
}

func (w *Workflow) Fix() *geo.Fix {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fix
}

// LastMessage is the server's verbatim rejection message from the most
// recent failed submission.
func (w *Workflow) LastMessage() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastMessage
}

func (w *Workflow) Code() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.code
}

func (w *Workflow) Note() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.note
}
