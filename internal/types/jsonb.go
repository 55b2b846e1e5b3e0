package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions. These ensure the JSONB types implement
// both sql.Scanner and driver.Valuer, catching method signature drift at
// compile time. Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*AlertPayload)(nil)
	_ driver.Valuer = AlertPayload{}
	_ sql.Scanner   = (*Diagnostics)(nil)
	_ driver.Valuer = Diagnostics{}
	_ sql.Scanner   = (*AnomalyList)(nil)
	_ driver.Valuer = AnomalyList(nil)
	_ sql.Scanner   = (*JSONMap)(nil)
	_ driver.Valuer = JSONMap(nil)
)

// scanJSONB scans a JSONB database value into a Go pointer. It handles nil
// values, []byte, and string representations.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// valueJSONB converts a Go value to a JSONB-compatible driver.Value.
func valueJSONB(v interface{}) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// AnomalyList is a JSONB-persisted slice of sensor anomalies.
type AnomalyList []SensorAnomaly

// JSONMap is a JSONB-persisted map of derived feature values.
type JSONMap map[string]float64

// Scan implements sql.Scanner for reading JSONB from the database.
func (p *AlertPayload) Scan(value interface{}) error {
	return scanJSONB(p, value)
}

// Value implements driver.Valuer for writing JSONB to the database.
func (p AlertPayload) Value() (driver.Value, error) {
	return valueJSONB(p)
}

// Scan implements sql.Scanner for reading JSONB from the database.
func (d *Diagnostics) Scan(value interface{}) error {
	return scanJSONB(d, value)
}

// Value implements driver.Valuer for writing JSONB to the database.
func (d Diagnostics) Value() (driver.Value, error) {
	return valueJSONB(d)
}

// Scan implements sql.Scanner for reading JSONB from the database.
func (a *AnomalyList) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	return scanJSONB(a, value)
}

// Value implements driver.Valuer for writing JSONB to the database.
func (a AnomalyList) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for reading JSONB from the database.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	return scanJSONB(m, value)
}

// Value implements driver.Valuer for writing JSONB to the database.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
