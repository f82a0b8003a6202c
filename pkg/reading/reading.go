package reading

import (
	"encoding/json"
	"time"
)

// Meta holds arbitrary structured attributes of a reading.
type Meta map[string]any

// Reading is one stored sensor reading. Readings are immutable once written.
type Reading struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Sensor    string    `json:"sensor"`
	Value     *float64  `json:"value"`
	Unit      *string   `json:"unit"`
	Meta      Meta      `json:"meta"`
}

// Key is the natural key identifying a reading across stores.
type Key struct {
	Timestamp time.Time
	Sensor    string
}

func (r Reading) Key() Key {
	return Key{Timestamp: r.Timestamp.UTC(), Sensor: r.Sensor}
}

// Precision is the timestamp resolution shared by all stores.
const Precision = time.Microsecond

// Normalize converts ts to the UTC, microsecond resolution form used as part
// of the natural key.
func Normalize(ts time.Time) time.Time {
	return ts.UTC().Truncate(Precision)
}

// EncodeMeta returns the JSON form of m, or nil for an empty map.
func EncodeMeta(m Meta) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

// DecodeMeta is the inverse of EncodeMeta.
func DecodeMeta(data []byte) (Meta, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func Float64Pointer(v float64) *float64 {
	return &v
}

func StringPointer(v string) *string {
	return &v
}
