package ingest

import (
	"context"
	"io"
	"log/slog"

	"github.com/niktheblak/water-quality-logger/pkg/calibration"
	"github.com/niktheblak/water-quality-logger/pkg/reading"
)

// Converter converts raw sensor voltages into physical values.
type Converter interface {
	Convert(sensor string, voltage float64) (float64, error)
}

// Appender stores readings.
type Appender interface {
	Append(ctx context.Context, sensor string, value *float64, unit *string, meta reading.Meta) (reading.Reading, error)
}

// Recorder converts raw voltages and appends the result to the local store.
type Recorder struct {
	converter Converter
	store     Appender
	logger    *slog.Logger
}

func NewRecorder(converter Converter, store Appender, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{
		converter: converter,
		store:     store,
		logger:    logger,
	}
}

// Record converts voltage for sensor and stores it. The raw voltage is kept in
// the reading metadata under "voltage".
func (r *Recorder) Record(ctx context.Context, sensor string, voltage float64, meta reading.Meta) (reading.Reading, error) {
	value, err := r.converter.Convert(sensor, voltage)
	if err != nil {
		return reading.Reading{}, err
	}
	m := make(reading.Meta, len(meta)+1)
	for k, v := range meta {
		m[k] = v
	}
	m["voltage"] = voltage
	var unit *string
	if u := calibration.Unit(sensor); u != "" {
		unit = &u
	}
	stored, err := r.store.Append(ctx, sensor, &value, unit, m)
	if err != nil {
		return reading.Reading{}, err
	}
	r.logger.LogAttrs(ctx, slog.LevelDebug, "Recorded reading", slog.String("sensor", sensor), slog.Float64("voltage", voltage), slog.Float64("value", value))
	return stored, nil
}
