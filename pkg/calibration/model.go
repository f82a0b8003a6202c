package calibration

import (
	"errors"
	"math"
)

var (
	ErrInsufficientData = errors.New("insufficient calibration data")
	ErrDegenerateFit    = errors.New("degenerate calibration fit")
	ErrCorruptState     = errors.New("corrupt calibration state")
	ErrUnknownSensor    = errors.New("unknown sensor")
	ErrInvalidVoltage   = errors.New("invalid voltage")
)

// Sensor kinds with built-in default models.
const (
	PH  = "ph"
	TDS = "tds"
	DO  = "do"
)

// MaxVoltage is the upper end of the ADC input range the defaults are scaled to.
const MaxVoltage = 3.3

// Model is a linear mapping from raw sensor voltage to a physical value.
type Model struct {
	Sensor string  `json:"-"`
	Slope  float64 `json:"slope"`
	Offset float64 `json:"offset"`
}

// Apply converts voltage to a physical value. Readings cannot be negative so
// the result is clamped to zero.
func (m Model) Apply(voltage float64) float64 {
	return math.Max(0, m.Slope*voltage+m.Offset)
}

func (m Model) valid() bool {
	return !math.IsNaN(m.Slope) && !math.IsInf(m.Slope, 0) && !math.IsNaN(m.Offset) && !math.IsInf(m.Offset, 0)
}

// Point is a ground truth pair from a manual reference measurement.
type Point struct {
	Voltage   float64
	Reference float64
}

// Models maps sensor id to its calibration model.
type Models map[string]Model

// Lookup returns the model for sensor, falling back to the built-in default.
func (ms Models) Lookup(sensor string) (Model, bool) {
	if m, ok := ms[sensor]; ok {
		m.Sensor = sensor
		return m, true
	}
	m, ok := Defaults()[sensor]
	return m, ok
}

// Clone returns a copy of ms that can be modified independently.
func (ms Models) Clone() Models {
	c := make(Models, len(ms))
	for k, v := range ms {
		c[k] = v
	}
	return c
}

// Defaults returns the built-in models covering a 0-3.3 V input range.
func Defaults() Models {
	return Models{
		PH:  {Sensor: PH, Slope: 14.0 / MaxVoltage, Offset: 0},
		TDS: {Sensor: TDS, Slope: 2000.0 / MaxVoltage, Offset: 0},
		DO:  {Sensor: DO, Slope: 14.0 / MaxVoltage, Offset: 0},
	}
}

var units = map[string]string{
	PH:  "pH",
	TDS: "ppm",
	DO:  "mg/L",
}

// Unit returns the physical unit of sensor or an empty string when unknown.
func Unit(sensor string) string {
	return units[sensor]
}
