package model

// SpotKind distinguishes ordinary parking spots from blocking-vehicle
// placeholders, which carry stricter occupant rules.
type SpotKind string

const (
	SpotOrdinary SpotKind = "ORDINARY"
	SpotBlocking SpotKind = "BLOCKING"
)

// Spot is a fixed catalog entry.  It is never created or destroyed at
// runtime.
//
// Fields:
//  ID              – stable identifier used as the schedule's spot key.
//  DefaultOccupant – name shown on the tile and written by "reset".
//  Kind            – ORDINARY or BLOCKING.
//  Row             – zero-based layout row the tile is drawn in.
type Spot struct {
	ID              string   `json:"id" yaml:"id"`
	DefaultOccupant string   `json:"default_occupant" yaml:"default_occupant"`
	Kind            SpotKind `json:"kind" yaml:"kind"`
	Row             int      `json:"row" yaml:"row"`
}

// Blocking reports whether the spot is a blocking-vehicle placeholder.
func (s Spot) Blocking() bool { return s.Kind == SpotBlocking }
