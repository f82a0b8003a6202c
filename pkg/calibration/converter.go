package calibration

import (
	"fmt"
	"math"
)

// Converter turns raw voltages into physical values using the latest models
// in the store. The store is read on every call so a recalibration applies to
// the next conversion.
type Converter struct {
	store Store
}

func NewConverter(store Store) *Converter {
	return &Converter{store: store}
}

func (c *Converter) Convert(sensor string, voltage float64) (float64, error) {
	if math.IsNaN(voltage) || math.IsInf(voltage, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidVoltage, voltage)
	}
	m, err := c.Model(sensor)
	if err != nil {
		return 0, err
	}
	v := m.Apply(voltage)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v converts to %v for sensor %s", ErrInvalidVoltage, voltage, v, sensor)
	}
	return v, nil
}

// Model returns the model currently in effect for sensor.
func (c *Converter) Model(sensor string) (Model, error) {
	models, err := c.store.Load()
	if err != nil {
		return Model{}, err
	}
	m, ok := models.Lookup(sensor)
	if !ok {
		return Model{}, fmt.Errorf("%w: %s", ErrUnknownSensor, sensor)
	}
	return m, nil
}

// Models returns every model in effect: the persisted ones plus defaults for
// sensors without a persisted model.
func (c *Converter) Models() (Models, error) {
	models, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	all := Defaults()
	for k, v := range models {
		all[k] = v
	}
	return all, nil
}
