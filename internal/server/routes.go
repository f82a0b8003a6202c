package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/niktheblak/water-quality-logger/pkg/calibration"
	"github.com/niktheblak/water-quality-logger/pkg/reading"
)

const maxBodySize = 64 << 10

type recordRequest struct {
	Sensor  string       `json:"sensor"`
	Voltage *float64     `json:"voltage"`
	Meta    reading.Meta `json:"meta,omitempty"`
}

func recordHandler(recorder Recorder, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Sensor == "" || req.Voltage == nil {
			http.Error(w, "sensor and voltage are required", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		stored, err := recorder.Record(ctx, req.Sensor, *req.Voltage, req.Meta)
		switch {
		case errors.Is(err, calibration.ErrUnknownSensor), errors.Is(err, calibration.ErrInvalidVoltage):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case errors.Is(err, context.DeadlineExceeded):
			logger.LogAttrs(r.Context(), slog.LevelError, "Timeout while storing reading", slog.Any("error", err))
			http.Error(w, "Timeout while storing reading", http.StatusServiceUnavailable)
			return
		case err == nil:
		default:
			logger.LogAttrs(r.Context(), slog.LevelError, "Error while storing reading", slog.String("sensor", req.Sensor), slog.Any("error", err))
			http.Error(w, "Error while storing reading", http.StatusInternalServerError)
			return
		}
		writeJSON(w, r, http.StatusCreated, createResponse(stored, time.UTC), logger)
	})
}

func readingsHandler(readings Readings, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc, err := parseLocation(r.URL.Query().Get("tz"))
		if err != nil {
			logger.LogAttrs(r.Context(), slog.LevelWarn, "Invalid timezone", slog.String("timezone", r.URL.Query().Get("tz")), slog.Any("error", err))
			http.Error(w, "Invalid timezone", http.StatusBadRequest)
			return
		}
		since, err := parseSince(r.URL.Query().Get("since"))
		if err != nil {
			http.Error(w, "Invalid since", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		rs, err := readings.Since(ctx, since)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			logger.LogAttrs(r.Context(), slog.LevelError, "Timeout while querying readings", slog.Any("error", err))
			http.Error(w, "Timeout while querying readings", http.StatusServiceUnavailable)
			return
		case err == nil:
		default:
			logger.LogAttrs(r.Context(), slog.LevelError, "Error while querying readings", slog.Any("error", err))
			http.Error(w, "Error while querying readings", http.StatusInternalServerError)
			return
		}
		response := make([]readingResponse, 0, len(rs))
		for _, rd := range rs {
			response = append(response, createResponse(rd, loc))
		}
		w.Header().Set("Cache-Control", "no-store, max-age=0")
		writeJSON(w, r, http.StatusOK, response, logger)
	})
}

type modelResponse struct {
	Slope  float64 `json:"slope"`
	Offset float64 `json:"offset"`
	Unit   string  `json:"unit,omitempty"`
}

func calibrationHandler(calibrations Calibrations, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		models, err := calibrations.Models()
		if err != nil {
			logger.LogAttrs(r.Context(), slog.LevelError, "Error while loading calibration", slog.Any("error", err))
			http.Error(w, "Error while loading calibration", http.StatusInternalServerError)
			return
		}
		response := make(map[string]modelResponse, len(models))
		for sensor, m := range models {
			response[sensor] = modelResponse{
				Slope:  m.Slope,
				Offset: m.Offset,
				Unit:   calibration.Unit(sensor),
			}
		}
		writeJSON(w, r, http.StatusOK, response, logger)
	})
}

func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("OK"))
	})
}

type readingResponse struct {
	ID        int64        `json:"id"`
	Timestamp time.Time    `json:"ts"`
	Sensor    string       `json:"sensor"`
	Value     *float64     `json:"value,omitempty"`
	Unit      *string      `json:"unit,omitempty"`
	Meta      reading.Meta `json:"meta,omitempty"`
}

func createResponse(r reading.Reading, loc *time.Location) readingResponse {
	return readingResponse{
		ID:        r.ID,
		Timestamp: r.Timestamp.In(loc),
		Sensor:    r.Sensor,
		Value:     r.Value,
		Unit:      r.Unit,
		Meta:      r.Meta,
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.LogAttrs(r.Context(), slog.LevelError, "Error while writing output", slog.Any("error", err))
	}
}

func parseLocation(tz string) (loc *time.Location, err error) {
	if tz != "" {
		loc, err = time.LoadLocation(tz)
		return
	}
	loc = time.UTC
	return
}

func parseSince(since string) (*time.Time, error) {
	if since == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, since)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
