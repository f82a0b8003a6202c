package localstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/niktheblak/water-quality-logger/pkg/reading"
)

// Table is the name of the readings relation.
const Table = "sensor_readings"

type Config struct {
	Path   string
	Logger *slog.Logger
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

type sensorReading struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"not null;index:idx_sensor_readings_timestamp"`
	Sensor    string    `gorm:"type:text;not null"`
	Value     *float64
	Unit      *string        `gorm:"type:text"`
	Meta      datatypes.JSON `gorm:"column:meta"`
}

func (sensorReading) TableName() string {
	return Table
}

// Store is the append-only local log of sensor readings. It is the only
// component assigning reading timestamps.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	clock  func() time.Time

	mu   sync.Mutex
	last time.Time
}

// Open opens or creates the SQLite database at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Path == "" {
		return nil, errors.New("local store path is required")
	}
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Discard,
		NowFunc: func() time.Time {
			return cfg.Clock().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// single writer
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&sensorReading{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create %s: %w", Table, err)
	}
	s := &Store{
		db:     db,
		logger: cfg.Logger,
		clock:  cfg.Clock,
	}
	last, ok, err := s.Latest(context.Background())
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	if ok {
		s.last = last
	}
	cfg.Logger.LogAttrs(context.Background(), slog.LevelDebug, "Opened local store", slog.String("path", cfg.Path), slog.Time("latest", last))
	return s, nil
}

// Append stores a new reading stamped with the current time. Timestamps are
// strictly increasing within the store.
func (s *Store) Append(ctx context.Context, sensor string, value *float64, unit *string, meta reading.Meta) (reading.Reading, error) {
	rawMeta, err := reading.EncodeMeta(meta)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("invalid metadata: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := reading.Normalize(s.clock())
	if !ts.After(s.last) {
		ts = s.last.Add(reading.Precision)
	}
	row := sensorReading{
		Timestamp: ts,
		Sensor:    sensor,
		Value:     value,
		Unit:      unit,
		Meta:      datatypes.JSON(rawMeta),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return reading.Reading{}, err
	}
	s.last = ts
	s.logger.LogAttrs(ctx, slog.LevelDebug, "Stored reading", slog.Int64("id", row.ID), slog.String("sensor", sensor), slog.Time("timestamp", ts))
	return toReading(row)
}

// Since returns the readings newer than since in ascending timestamp order,
// or every reading when since is nil.
func (s *Store) Since(ctx context.Context, since *time.Time) ([]reading.Reading, error) {
	q := s.db.WithContext(ctx).Order("timestamp ASC").Order("id ASC")
	if since != nil {
		q = q.Where("timestamp > ?", since.UTC())
	}
	var rows []sensorReading
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	readings := make([]reading.Reading, 0, len(rows))
	for _, row := range rows {
		r, err := toReading(row)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, nil
}

// Latest returns the newest timestamp in the store.
func (s *Store) Latest(ctx context.Context) (time.Time, bool, error) {
	var rows []sensorReading
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(1).
		Find(&rows).
		Error
	if err != nil {
		return time.Time{}, false, err
	}
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return rows[0].Timestamp.UTC(), true, nil
}

// Count returns the number of stored readings.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&sensorReading{}).Count(&n).Error
	return n, err
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toReading(row sensorReading) (reading.Reading, error) {
	meta, err := reading.DecodeMeta(row.Meta)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("reading %d has invalid metadata: %w", row.ID, err)
	}
	return reading.Reading{
		ID:        row.ID,
		Timestamp: row.Timestamp.UTC(),
		Sensor:    row.Sensor,
		Value:     row.Value,
		Unit:      row.Unit,
		Meta:      meta,
	}, nil
}
