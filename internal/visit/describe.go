package visit

import (
	"errors"

	"github.com/farganamar/evv-portal/internal/appointment"
	"github.com/farganamar/evv-portal/internal/gateway"
	"github.com/farganamar/evv-portal/internal/geo"
)

// Describe converts a workflow or gateway error into the text shown to the
// caregiver, or "" when the error carries no caregiver-facing meaning.
// Diagnostics keep the underlying error; the caregiver sees only these
// messages.
func Describe(err error) string {
	var appErr *ApplicationError
	var transportErr *gateway.TransportError
	var serverErr *gateway.ServerError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &appErr):
		return appErr.Message
	case errors.Is(err, gateway.ErrUnauthorized):
		return "Your session has expired. Please log in again."
	case errors.Is(err, appointment.ErrNotFound):
		return "Appointment not found."
	case errors.Is(err, ErrCodeRequired):
		return "Enter the verification code to continue."
	case errors.Is(err, ErrLocationMissing):
		return "No location available. A device fix or an on-file client address is required."
	case errors.Is(err, ErrNotOffered):
		return "This action is not available for the appointment's current status."
	case errors.Is(err, ErrBusy):
		return "A verification attempt is already in progress."
	case errors.Is(err, ErrCancelled):
		return "Verification cancelled."
	case errors.As(err, &transportErr):
		return "Unable to reach the server. Check your connection and try again."
	case errors.As(err, &serverErr):
		return "The server ran into a problem. Please try again later."
	case errors.Is(err, geo.ErrDenied):
		return "Location permission was denied."
	case errors.Is(err, geo.ErrTimeout), errors.Is(err, geo.ErrUnavailable):
		return "Device location is unavailable. The client's on-file address will be used."
	default:
		return ""
	}
}
