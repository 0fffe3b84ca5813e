package visit

import (
	"context"
	"errors"

	"github.com/farganamar/evv-portal/internal/appointment"
	"github.com/farganamar/evv-portal/internal/gateway"
	"github.com/farganamar/evv-portal/internal/model"
)

type ActivityType string

const (
	ActivityGeneral    ActivityType = "GENERAL"
	ActivityMedication ActivityType = "MEDICATION"
	ActivityMeal       ActivityType = "MEAL"
	ActivityExercise   ActivityType = "EXERCISE"
	ActivityOther      ActivityType = "OTHER"
)

var (
	ErrActivityTypeRequired = errors.New("visit: activity type is required")
	ErrActivityNoteRequired = errors.New("visit: activity note is required")
)

// ReportForm files a free-form activity note against an appointment. One-shot
// submit: success refreshes the log list and clears the form, failure keeps
// the contents for correction. No state machine beyond open/submitting/closed.
type ReportForm struct {
	api    *gateway.Client
	detail *appointment.Detail

	AppointmentID string
	ActivityType  ActivityType
	Notes         string

	submitting bool
}

func NewReportForm(api *gateway.Client, detail *appointment.Detail, appointmentID string) *ReportForm {
	return &ReportForm{api: api, detail: detail, AppointmentID: appointmentID}
}

func (f *ReportForm) Submit(ctx context.Context) ([]model.AppointmentLog, error) {
	if f.submitting {
		return nil, ErrBusy
	}
	if f.ActivityType == "" {
		return nil, ErrActivityTypeRequired
	}
	if f.Notes == "" {
		return nil, ErrActivityNoteRequired
	}

	f.submitting = true
	defer func() { f.submitting = false }()

	resp, err := f.api.ReportActivity(ctx, gateway.ActivityReport{
		AppointmentID: f.AppointmentID,
		ActivityType:  string(f.ActivityType),
		Notes:         f.Notes,
	})
	if err != nil {
		return nil, err
	}
	if resp.Code != gateway.CodeOK {
		return nil, &ApplicationError{Message: resp.Message, Code: resp.Code}
	}

	logs, err := f.detail.Logs(ctx, f.AppointmentID)
	if err != nil {
		return nil, err
	}
	f.ActivityType = ""
	f.Notes = ""
	return logs, nil
}
