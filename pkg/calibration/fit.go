package calibration

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Fit computes the ordinary least squares line value = slope*voltage + offset
// through the given calibration points.
func Fit(sensor string, points []Point) (Model, error) {
	if len(points) < 2 {
		return Model{}, fmt.Errorf("%w: need at least 2 points, got %d", ErrInsufficientData, len(points))
	}
	voltages := make([]float64, len(points))
	references := make([]float64, len(points))
	for i, p := range points {
		voltages[i] = p.Voltage
		references[i] = p.Reference
	}
	if floats.HasNaN(voltages) || floats.HasNaN(references) {
		return Model{}, fmt.Errorf("%w: points contain NaN", ErrDegenerateFit)
	}
	if floats.Min(voltages) == floats.Max(voltages) {
		return Model{}, fmt.Errorf("%w: all points share voltage %g", ErrDegenerateFit, voltages[0])
	}
	offset, slope := stat.LinearRegression(voltages, references, nil, false)
	m := Model{
		Sensor: sensor,
		Slope:  slope,
		Offset: offset,
	}
	if !m.valid() {
		return Model{}, fmt.Errorf("%w: slope=%g offset=%g", ErrDegenerateFit, slope, offset)
	}
	return m, nil
}

// Recalibrate fits a new model for sensor and saves it, leaving the models of
// other sensors untouched.
func Recalibrate(store Store, sensor string, points []Point) (Model, error) {
	m, err := Fit(sensor, points)
	if err != nil {
		return Model{}, err
	}
	models, err := store.Load()
	if err != nil {
		return Model{}, err
	}
	models = models.Clone()
	models[sensor] = m
	if err := store.Save(models); err != nil {
		return Model{}, err
	}
	return m, nil
}

// ParsePoint parses a "voltage:reference" pair.
func ParsePoint(s string) (Point, error) {
	v, r, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Point{}, fmt.Errorf("invalid calibration point %q: expected voltage:reference", s)
	}
	voltage, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid voltage in calibration point %q: %w", s, err)
	}
	reference, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid reference in calibration point %q: %w", s, err)
	}
	return Point{Voltage: voltage, Reference: reference}, nil
}
