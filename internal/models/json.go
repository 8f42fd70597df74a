// Package models contains the persisted entity shapes: League,
// agent registrations, rounds, matches, results, and standings snapshots.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONBlob stores an opaque JSON object in a single database column. It
// backs every opaque protocol field: the league's config blob, a
// match's game_metadata, and a move's step_context/move_payload when
// those cross the persistence boundary for audit/debug purposes.
type JSONBlob map[string]interface{}

func (b *JSONBlob) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONBlob", value)
	}
	if len(bytes) == 0 {
		*b = nil
		return nil
	}
	return json.Unmarshal(bytes, b)
}

func (b JSONBlob) Value() (driver.Value, error) {
	if b == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b)
}

// StringSet stores a small ordered list of string IDs (e.g. a match's
// two player_ids) as a JSON array column.
type StringSet []string

func (s *StringSet) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into StringSet", value)
	}
	if len(bytes) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(bytes, s)
}

func (s StringSet) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// OutcomeMap maps player_id to "win"|"loss"|"draw".
type OutcomeMap map[string]string

func (o *OutcomeMap) Scan(value interface{}) error {
	if value == nil {
		*o = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into OutcomeMap", value)
	}
	return json.Unmarshal(bytes, o)
}

func (o OutcomeMap) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// PointsMap maps player_id to non-negative points awarded.
type PointsMap map[string]int

func (p *PointsMap) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into PointsMap", value)
	}
	return json.Unmarshal(bytes, p)
}

func (p PointsMap) Value() (driver.Value, error) {
	return json.Marshal(p)
}
