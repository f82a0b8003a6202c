package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var ErrMalformedLine = errors.New("malformed sample line")

// Sample is one raw voltage measurement.
type Sample struct {
	Sensor  string
	Voltage float64
}

// ParseLine parses a line of sensor=voltage pairs separated by commas or
// whitespace, for example "ph=1.52,tds=0.80 do=1.10".
func ParseLine(line string) ([]Sample, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	var samples []Sample
	for _, f := range fields {
		sensor, value, ok := strings.Cut(f, "=")
		if !ok {
			sensor, value, ok = strings.Cut(f, ":")
		}
		if !ok || sensor == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedLine, f)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrMalformedLine, f, err)
		}
		samples = append(samples, Sample{Sensor: strings.ToLower(sensor), Voltage: v})
	}
	return samples, nil
}

// DefaultPollInterval is how long Follow waits after a read returned no data.
const DefaultPollInterval = 100 * time.Millisecond

// Sampler reads sample lines from a device and records them.
type Sampler struct {
	recorder *Recorder
	source   string
	logger   *slog.Logger
	poll     time.Duration
}

// NewSampler creates a sampler whose readings carry source in their metadata.
func NewSampler(recorder *Recorder, source string, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sampler{
		recorder: recorder,
		source:   source,
		logger:   logger,
		poll:     DefaultPollInterval,
	}
}

// Run records samples from r until r is exhausted or ctx is cancelled. Lines
// that cannot be parsed or converted are logged and skipped. It returns the
// number of readings stored.
func (s *Sampler) Run(ctx context.Context, r io.Reader) (int, error) {
	return s.consume(ctx, r, false)
}

// Follow records samples from a device until ctx is cancelled or a read fails.
// An empty read or io.EOF means no data has arrived yet, which is what a
// serial port opened with a read timeout returns while the ADC is silent.
// A line split across such reads is reassembled before parsing.
func (s *Sampler) Follow(ctx context.Context, r io.Reader) (int, error) {
	return s.consume(ctx, r, true)
}

func (s *Sampler) consume(ctx context.Context, r io.Reader, follow bool) (int, error) {
	br := bufio.NewReader(r)
	var pending strings.Builder
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		chunk, err := br.ReadString('\n')
		pending.WriteString(chunk)
		switch {
		case err == nil:
			n += s.record(ctx, pending.String())
			pending.Reset()
			continue
		case !errors.Is(err, io.EOF):
			if ctx.Err() != nil {
				return n, ctx.Err()
			}
			return n, err
		case !follow:
			if pending.Len() > 0 {
				n += s.record(ctx, pending.String())
			}
			return n, nil
		}
		timer := time.NewTimer(s.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, ctx.Err()
		case <-timer.C:
		}
	}
}

// record stores every sample of line and returns how many were stored.
func (s *Sampler) record(ctx context.Context, line string) int {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return 0
	}
	samples, err := ParseLine(line)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "Skipping malformed line", slog.String("line", line), slog.Any("error", err))
		return 0
	}
	n := 0
	for _, sample := range samples {
		_, err := s.recorder.Record(ctx, sample.Sensor, sample.Voltage, map[string]any{"source": s.source})
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to record sample", slog.String("sensor", sample.Sensor), slog.Float64("voltage", sample.Voltage), slog.Any("error", err))
			continue
		}
		n++
	}
	return n
}
