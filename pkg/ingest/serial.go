package ingest

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

const (
	DefaultBaud        = 9600
	DefaultReadTimeout = time.Second
)

type SerialConfig struct {
	Port string
	Baud int
	// ReadTimeout bounds a single read. A read that times out returns no
	// data, so a reader never blocks longer than this on a silent device.
	ReadTimeout time.Duration
}

// OpenSerial opens the serial port the ADC writes sample lines to.
func OpenSerial(cfg SerialConfig) (io.ReadCloser, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port is required")
	}
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	return port, nil
}
