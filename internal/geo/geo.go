// Package geo abstracts the one-shot device location fix the visit workflow
// needs. Every Locate call must produce a fresh fix; cached positions are not
// acceptable for visit verification.
package geo

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnavailable = errors.New("geo: no location provider available")
	ErrDenied      = errors.New("geo: location permission denied")
	ErrTimeout     = errors.New("geo: location fix timed out")
)

type Fix struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	At        time.Time
}

type Locator interface {
	Locate(ctx context.Context) (Fix, error)
}

// Static always reports a fixed coordinate, e.g. one supplied on the command
// line or from a tethered GPS reading.
type Static struct {
	Latitude  float64
	Longitude float64
}

func (s Static) Locate(_ context.Context) (Fix, error) {
	return Fix{Latitude: s.Latitude, Longitude: s.Longitude, At: time.Now().UTC()}, nil
}

// Unavailable models a device without any location source.
type Unavailable struct{}

func (Unavailable) Locate(_ context.Context) (Fix, error) {
	return Fix{}, ErrUnavailable
}

// Func adapts a function to the Locator interface. Used by tests and by
// integrations that bridge an external positioning source.
type Func func(ctx context.Context) (Fix, error)

func (f Func) Locate(ctx context.Context) (Fix, error) {
	return f(ctx)
}
