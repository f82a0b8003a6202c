package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/niktheblak/web-common/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/niktheblak/water-quality-logger/pkg/calibration"
	"github.com/niktheblak/water-quality-logger/pkg/reading"
)

const testAccessToken = "a65cd12f9bba453"

var testTime = time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)

type mockRecorder struct {
	Err    error
	Sensor string
	Meta   reading.Meta
}

func (m *mockRecorder) Record(ctx context.Context, sensor string, voltage float64, meta reading.Meta) (reading.Reading, error) {
	if m.Err != nil {
		return reading.Reading{}, m.Err
	}
	m.Sensor = sensor
	m.Meta = meta
	return reading.Reading{
		ID:        7,
		Timestamp: testTime,
		Sensor:    sensor,
		Value:     reading.Float64Pointer(voltage * 2),
		Unit:      reading.StringPointer("pH"),
		Meta:      reading.Meta{"voltage": voltage},
	}, nil
}

type mockReadings struct {
	Response  []reading.Reading
	Err       error
	Requested *time.Time
}

func (m *mockReadings) Since(ctx context.Context, since *time.Time) ([]reading.Reading, error) {
	m.Requested = since
	return m.Response, m.Err
}

type mockCalibrations struct {
	Response calibration.Models
	Err      error
}

func (m *mockCalibrations) Models() (calibration.Models, error) {
	return m.Response, m.Err
}

func newTestServer(rec Recorder, rs Readings, cal Calibrations) http.Handler {
	return New(Config{
		Recorder:      rec,
		Readings:      rs,
		Calibrations:  cal,
		Authenticator: auth.Static(testAccessToken),
	})
}

func authorized(req *http.Request) *http.Request {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", testAccessToken))
	return req
}

func TestRecord(t *testing.T) {
	t.Parallel()

	t.Run("created", func(t *testing.T) {
		t.Parallel()

		rec := new(mockRecorder)
		srv := newTestServer(rec, new(mockReadings), new(mockCalibrations))
		body := `{"sensor":"ph","voltage":1.5,"meta":{"probe":"A"}}`
		req := authorized(httptest.NewRequest("POST", "/readings", strings.NewReader(body)))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)
		m := decode(t, w.Body)
		assert.Equal(t, "2025-06-01T08:00:00Z", m["ts"])
		assert.Equal(t, "ph", m["sensor"])
		assert.Equal(t, 3.0, m["value"])
		assert.Equal(t, "pH", m["unit"])
		assert.Equal(t, "ph", rec.Sensor)
		assert.Equal(t, reading.Meta{"probe": "A"}, rec.Meta)
	})
	t.Run("without token", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(new(mockRecorder), new(mockReadings), new(mockCalibrations))
		req := httptest.NewRequest("POST", "/readings", strings.NewReader(`{"sensor":"ph","voltage":1.5}`))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"malformed body", `{"sensor":`, nil, http.StatusBadRequest},
		{"missing voltage", `{"sensor":"ph"}`, nil, http.StatusBadRequest},
		{"missing sensor", `{"voltage":1.0}`, nil, http.StatusBadRequest},
		{"unknown sensor", `{"sensor":"orp","voltage":1.0}`, calibration.ErrUnknownSensor, http.StatusBadRequest},
		{"invalid voltage", `{"sensor":"ph","voltage":1.0}`, calibration.ErrInvalidVoltage, http.StatusBadRequest},
		{"store failure", `{"sensor":"ph","voltage":1.0}`, errors.New("disk full"), http.StatusInternalServerError},
		{"timeout", `{"sensor":"ph","voltage":1.0}`, context.DeadlineExceeded, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(&mockRecorder{Err: tt.err}, new(mockReadings), new(mockCalibrations))
			req := authorized(httptest.NewRequest("POST", "/readings", strings.NewReader(tt.body)))
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestReadings(t *testing.T) {
	t.Parallel()

	response := []reading.Reading{
		{ID: 1, Timestamp: testTime, Sensor: "ph", Value: reading.Float64Pointer(7.1), Unit: reading.StringPointer("pH")},
		{ID: 2, Timestamp: testTime.Add(time.Second), Sensor: "tds"},
	}
	t.Run("all", func(t *testing.T) {
		t.Parallel()

		rs := &mockReadings{Response: response}
		srv := newTestServer(new(mockRecorder), rs, new(mockCalibrations))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, authorized(httptest.NewRequest("GET", "/readings", nil)))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "no-store, max-age=0", w.Header().Get("Cache-Control"))
		var body []map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		require.Len(t, body, 2)
		assert.Equal(t, 7.1, body[0]["value"])
		assert.NotContains(t, body[1], "value")
		assert.Nil(t, rs.Requested)
	})
	t.Run("since", func(t *testing.T) {
		t.Parallel()

		rs := &mockReadings{Response: response[1:]}
		srv := newTestServer(new(mockRecorder), rs, new(mockCalibrations))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, authorized(httptest.NewRequest("GET", "/readings?since=2025-06-01T08:00:00Z", nil)))
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, rs.Requested)
		assert.True(t, testTime.Equal(*rs.Requested))
	})
	t.Run("timezone", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(new(mockRecorder), &mockReadings{Response: response[:1]}, new(mockCalibrations))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, authorized(httptest.NewRequest("GET", "/readings?tz=Europe/Helsinki", nil)))
		require.Equal(t, http.StatusOK, w.Code)
		var body []map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, "2025-06-01T11:00:00+03:00", body[0]["ts"])
	})
	t.Run("invalid since", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(new(mockRecorder), new(mockReadings), new(mockCalibrations))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, authorized(httptest.NewRequest("GET", "/readings?since=yesterday", nil)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("invalid timezone", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(new(mockRecorder), new(mockReadings), new(mockCalibrations))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, authorized(httptest.NewRequest("GET", "/readings?tz=Mars/Olympus", nil)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("store failure", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(new(mockRecorder), &mockReadings{Err: errors.New("locked")}, new(mockCalibrations))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, authorized(httptest.NewRequest("GET", "/readings", nil)))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestCalibration(t *testing.T) {
	t.Parallel()

	cal := &mockCalibrations{Response: calibration.Models{
		calibration.PH: {Slope: 3.5, Offset: 0.25},
	}}
	srv := newTestServer(new(mockRecorder), new(mockReadings), cal)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, authorized(httptest.NewRequest("GET", "/calibration", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	m := decode(t, w.Body)
	require.IsType(t, map[string]any{}, m["ph"])
	ph := m["ph"].(map[string]any)
	assert.Equal(t, 3.5, ph["slope"])
	assert.Equal(t, 0.25, ph["offset"])
	assert.Equal(t, "pH", ph["unit"])

	failing := newTestServer(new(mockRecorder), new(mockReadings), &mockCalibrations{Err: calibration.ErrCorruptState})
	w = httptest.NewRecorder()
	failing.ServeHTTP(w, authorized(httptest.NewRequest("GET", "/calibration", nil)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(new(mockRecorder), new(mockReadings), new(mockCalibrations))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	srv := New(Config{
		Recorder:      new(mockRecorder),
		Readings:      new(mockReadings),
		Calibrations:  new(mockCalibrations),
		Authenticator: auth.Static(testAccessToken),
		Limiter:       rate.NewLimiter(rate.Every(time.Hour), 1),
	})
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, authorized(httptest.NewRequest("GET", "/readings", nil)))
	assert.Equal(t, http.StatusOK, w.Code)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, authorized(httptest.NewRequest("GET", "/readings", nil)))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func decode(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	m := make(map[string]any)
	require.NoError(t, json.NewDecoder(r).Decode(&m))
	return m
}
