package geo

import (
	"context"
	"errors"
	"testing"
)

func TestStaticReportsFixedCoordinate(t *testing.T) {
	fix, err := Static{Latitude: 37.0, Longitude: -122.0}.Locate(context.Background())
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if fix.Latitude != 37.0 || fix.Longitude != -122.0 {
		t.Fatalf("unexpected fix %+v", fix)
	}
	if fix.At.IsZero() {
		t.Fatalf("expected fix timestamp")
	}
}

func TestUnavailableFails(t *testing.T) {
	if _, err := (Unavailable{}).Locate(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestFuncRespectsContext(t *testing.T) {
	locator := Func(func(ctx context.Context) (Fix, error) {
		<-ctx.Done()
		return Fix{}, ErrTimeout
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := locator.Locate(ctx); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}
