// Package appointment holds the two read paths of the portal: the filtered
// appointment list and the single-appointment detail with its visit log.
// A null data field in the envelope is a distinct "not found / empty"
// condition, never an error.
package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/farganamar/evv-portal/internal/gateway"
	"github.com/farganamar/evv-portal/internal/model"
)

// ErrNotFound reports a single-entity fetch whose envelope carried data: null.
var ErrNotFound = errors.New("appointment: not found")

type Directory struct {
	api *gateway.Client
}

func NewDirectory(api *gateway.Client) *Directory {
	return &Directory{api: api}
}

// List fetches the caregiver's appointments filtered by status. A null or
// empty data field yields an empty slice, not an error.
func (d *Directory) List(ctx context.Context, status model.AppointmentStatus) ([]model.Appointment, error) {
	resp, err := d.api.ListAppointments(ctx, status)
	if err != nil {
		return nil, err
	}
	if resp.Code != gateway.CodeOK {
		return nil, fmt.Errorf("appointment: list rejected: %s (code %d)", resp.Message, resp.Code)
	}
	return resp.Data, nil
}

// Detail aggregates one appointment with its chronological visit log. The
// two fetches are independent calls whose results are combined for display.
type Detail struct {
	api *gateway.Client
}

func NewDetail(api *gateway.Client) *Detail {
	return &Detail{api: api}
}

func (d *Detail) Get(ctx context.Context, appointmentID string) (*model.Appointment, error) {
	resp, err := d.api.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if resp.Code != gateway.CodeOK {
		return nil, fmt.Errorf("appointment: fetch rejected: %s (code %d)", resp.Message, resp.Code)
	}
	if resp.Data == nil || resp.Data.AppointmentID == "" {
		return nil, ErrNotFound
	}
	return resp.Data, nil
}

func (d *Detail) Logs(ctx context.Context, appointmentID string) ([]model.AppointmentLog, error) {
	resp, err := d.api.GetAppointmentLogs(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if resp.Code != gateway.CodeOK {
		return nil, fmt.Errorf("appointment: logs rejected: %s (code %d)", resp.Message, resp.Code)
	}
	return resp.Data, nil
}

// Load fetches the appointment and its logs together, the combination every
// write path re-invokes for read-after-write consistency.
func (d *Detail) Load(ctx context.Context, appointmentID string) (*model.Appointment, []model.AppointmentLog, error) {
	appt, err := d.Get(ctx, appointmentID)
	if err != nil {
		return nil, nil, err
	}
	logs, err := d.Logs(ctx, appointmentID)
	if err != nil {
		return nil, nil, err
	}
	return appt, logs, nil
}

// CanCheckIn and CanCheckOut mirror the expected server policy for display:
// the server remains authoritative over actual transitions.
func CanCheckIn(a *model.Appointment) bool {
	return a != nil && a.Status == model.StatusScheduled
}

func CanCheckOut(a *model.Appointment) bool {
	return a != nil && a.Status == model.StatusInProgress
}
