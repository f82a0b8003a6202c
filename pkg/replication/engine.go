package replication

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/niktheblak/water-quality-logger/pkg/reading"
)

var (
	// ErrStorageUnavailable wraps failures of the local or remote store
	// during a cycle. The cycle is abandoned and retried on the next interval.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrNotReady means the destination is not configured. Cycles are skipped
	// until it is.
	ErrNotReady = errors.New("destination not ready")
)

const (
	DefaultInterval    = time.Second
	DefaultCallTimeout = 10 * time.Second
)

// Source is the local store readings are replicated from.
type Source interface {
	Since(ctx context.Context, since *time.Time) ([]reading.Reading, error)
}

// Destination is the remote store readings are replicated to.
type Destination interface {
	// LatestTimestamp returns the highest timestamp present, false when empty.
	LatestTimestamp(ctx context.Context) (time.Time, bool, error)
	Begin(ctx context.Context) (Batch, error)
}

// Batch collects the inserts of one cycle. Nothing is visible in the
// destination before Commit.
type Batch interface {
	Exists(ctx context.Context, key reading.Key) (bool, error)
	Insert(ctx context.Context, r reading.Reading) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Config struct {
	Source      Source
	Destination Destination
	// Interval is the delay between the end of a cycle and the start of the next one.
	Interval time.Duration
	// CallTimeout bounds every individual store call.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Result is the outcome of one cycle.
type Result struct {
	CycleID     string
	Cursor      *time.Time
	Candidates  int
	Transferred int
	Skipped     int
	Duration    time.Duration
}

// Engine copies readings the destination does not have yet. The cursor is
// recomputed from the destination on every cycle and each row is checked by
// its natural key before insert, so interrupted or repeated cycles never
// duplicate rows.
type Engine struct {
	source      Source
	dest        Destination
	interval    time.Duration
	callTimeout time.Duration
	logger      *slog.Logger
	state       atomic.Int32
}

func New(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, errors.New("source is required")
	}
	if cfg.Destination == nil {
		return nil, errors.New("destination is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Engine{
		source:      cfg.Source,
		dest:        cfg.Destination,
		interval:    cfg.Interval,
		callTimeout: cfg.CallTimeout,
		logger:      cfg.Logger,
	}, nil
}

// State returns the phase the engine is currently in.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// RunOnce executes a single sync cycle.
func (e *Engine) RunOnce(ctx context.Context) (res Result, err error) {
	start := time.Now()
	res.CycleID = uuid.NewString()
	logger := e.logger.With(slog.String("cycle", res.CycleID))
	defer func() {
		res.Duration = time.Since(start)
		e.setState(Idle)
	}()

	e.setState(FetchingCursor)
	var (
		cursor time.Time
		ok     bool
	)
	err = e.call(ctx, func(ctx context.Context) error {
		var err error
		cursor, ok, err = e.dest.LatestTimestamp(ctx)
		return err
	})
	if err != nil {
		return res, classify("fetch cursor", err)
	}
	if ok {
		res.Cursor = &cursor
		logger.LogAttrs(ctx, slog.LevelDebug, "Fetched cursor", slog.Time("cursor", cursor))
	} else {
		logger.LogAttrs(ctx, slog.LevelDebug, "Destination is empty")
	}

	e.setState(SelectingDelta)
	var candidates []reading.Reading
	err = e.call(ctx, func(ctx context.Context) error {
		var err error
		candidates, err = e.source.Since(ctx, res.Cursor)
		return err
	})
	if err != nil {
		return res, classify("select delta", err)
	}
	res.Candidates = len(candidates)
	if len(candidates) == 0 {
		logger.LogAttrs(ctx, slog.LevelInfo, "No new data to sync")
		return res, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Timestamp.Before(candidates[j].Timestamp)
	})

	e.setState(Transferring)
	transferred, skipped, err := e.transfer(ctx, candidates)
	res.Skipped = skipped
	if err != nil {
		return res, err
	}
	res.Transferred = transferred

	e.setState(Reporting)
	logger.LogAttrs(
		ctx,
		slog.LevelInfo,
		"Synced readings",
		slog.Int("candidates", res.Candidates),
		slog.Int("transferred", res.Transferred),
		slog.Int("skipped", res.Skipped),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (e *Engine) transfer(ctx context.Context, candidates []reading.Reading) (transferred, skipped int, err error) {
	var batch Batch
	err = e.call(ctx, func(ctx context.Context) error {
		var err error
		batch, err = e.dest.Begin(ctx)
		return err
	})
	if err != nil {
		return 0, 0, classify("begin transfer", err)
	}
	defer func() {
		if err == nil {
			return
		}
		// the cycle context may already be done
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.callTimeout)
		defer cancel()
		if rerr := batch.Rollback(rctx); rerr != nil {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to roll back transfer", slog.Any("error", rerr))
		}
		transferred = 0
	}()
	for _, r := range candidates {
		var exists bool
		err = e.call(ctx, func(ctx context.Context) error {
			var err error
			exists, err = batch.Exists(ctx, r.Key())
			return err
		})
		if err != nil {
			return transferred, skipped, classify("check existing reading", err)
		}
		if exists {
			skipped++
			continue
		}
		err = e.call(ctx, func(ctx context.Context) error {
			return batch.Insert(ctx, r)
		})
		if err != nil {
			return transferred, skipped, classify("insert reading", err)
		}
		transferred++
	}
	err = e.call(ctx, batch.Commit)
	if err != nil {
		return transferred, skipped, classify("commit", err)
	}
	return transferred, skipped, nil
}

func (e *Engine) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return fn(ctx)
}

func classify(op string, err error) error {
	if errors.Is(err, ErrNotReady) || errors.Is(err, ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// Run executes cycles until ctx is cancelled, waiting Interval between them.
// Failed cycles are logged and retried on the next interval.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.LogAttrs(ctx, slog.LevelInfo, "Starting sync", slog.Duration("interval", e.interval))
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "Sync stopped")
			return nil
		case <-timer.C:
		}
		_, err := e.RunOnce(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			e.logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "Sync stopped")
			return nil
		case errors.Is(err, ErrNotReady):
			e.logger.LogAttrs(ctx, slog.LevelWarn, "Destination not configured, skipping sync", slog.Any("error", err))
		default:
			e.logger.LogAttrs(ctx, slog.LevelError, "Sync cycle failed", slog.Any("error", err))
		}
		timer.Reset(e.interval)
	}
}
