package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/niktheblak/web-common/pkg/auth"
	"golang.org/x/time/rate"

	"github.com/niktheblak/water-quality-logger/pkg/calibration"
	"github.com/niktheblak/water-quality-logger/pkg/middleware"
	"github.com/niktheblak/water-quality-logger/pkg/reading"
)

type Recorder interface {
	Record(ctx context.Context, sensor string, voltage float64, meta reading.Meta) (reading.Reading, error)
}

type Readings interface {
	Since(ctx context.Context, since *time.Time) ([]reading.Reading, error)
}

type Calibrations interface {
	Models() (calibration.Models, error)
}

type Config struct {
	Recorder      Recorder
	Readings      Readings
	Calibrations  Calibrations
	Authenticator auth.Authenticator
	// Limiter throttles authenticated routes. Nil disables rate limiting.
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// New returns the HTTP handler of the ingest API.
func New(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Authenticator == nil {
		cfg.Authenticator = auth.AlwaysAllow()
	}
	protect := func(h http.Handler) http.Handler {
		return middleware.RateLimit(middleware.Authenticator(h, cfg.Authenticator, cfg.Logger), cfg.Limiter, cfg.Logger)
	}
	mux := http.NewServeMux()
	mux.Handle("POST /readings", protect(recordHandler(cfg.Recorder, cfg.Logger)))
	mux.Handle("GET /readings", protect(readingsHandler(cfg.Readings, cfg.Logger)))
	mux.Handle("GET /calibration", protect(calibrationHandler(cfg.Calibrations, cfg.Logger)))
	mux.Handle("GET /health", healthHandler())
	return mux
}
