// Package service implements the parking schedule operations offered to
// clients: spot tiles for a date, the hour grid of one spot with filters,
// validated single-hour edits and bulk clear/reset of the filtered hours.
// Every write funnels through store.Store.Apply.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/parking-schedule/internal/catalog"
	"github.com/iliyamo/parking-schedule/internal/model"
	"github.com/iliyamo/parking-schedule/internal/store"
	"github.com/iliyamo/parking-schedule/internal/validation"
)

var (
	// ErrUnknownSpot is returned for spot ids outside the catalog.
	ErrUnknownSpot = errors.New("unknown spot")
	// ErrInvalidHour is returned for hours outside the grid.
	ErrInvalidHour = errors.New("invalid hour")
	// ErrInvalidFilter is returned for unrecognised filter values.
	ErrInvalidFilter = errors.New("invalid filter")
)

// TileStatus is the colour of a spot tile.
type TileStatus string

const (
	TileFree     TileStatus = "free"
	TileOccupied TileStatus = "occupied"
)

// Tile is the summary of one spot on one date.
//
// Fields:
//  Spot     – catalog entry.
//  Status   – free when nothing is recorded or every recorded hour is
//             empty, occupied otherwise.
//  Partial  – some recorded hours are free while others are occupied.
//  Occupied – number of occupied hours.
type Tile struct {
	Spot     model.Spot `json:"spot"`
	Status   TileStatus `json:"status"`
	Partial  bool       `json:"partial"`
	Occupied int        `json:"occupied_hours"`
}

// HourSlot is one row of a spot's hour grid.
type HourSlot struct {
	Hour     int    `json:"hour"`
	Label    string `json:"label"`
	Occupant string `json:"occupant"`
	Free     bool   `json:"free"`
	Recorded bool   `json:"recorded"`
}

// ScheduleService exposes the schedule operations.  It holds no state of
// its own beyond its collaborators.
type ScheduleService struct {
	store   *store.Store
	catalog *catalog.Catalog
	loc     *time.Location
	now     func() time.Time
}

// NewScheduleService wires a service.  A nil location means time.Local.
func NewScheduleService(st *store.Store, cat *catalog.Catalog, loc *time.Location) *ScheduleService {
	if st == nil || cat == nil {
		panic("nil dependency passed to NewScheduleService")
	}
	if loc == nil {
		loc = time.Local
	}
	return &ScheduleService{store: st, catalog: cat, loc: loc, now: time.Now}
}

// Catalog returns the spot catalog.
func (s *ScheduleService) Catalog() *catalog.Catalog { return s.catalog }

// Location returns the zone date keys are computed in.
func (s *ScheduleService) Location() *time.Location { return s.loc }

// Today returns today's date key.
func (s *ScheduleService) Today() string {
	return model.DateKey(s.now().In(s.loc))
}

// WeekAhead returns the date keys of the seven days after today.
func (s *ScheduleService) WeekAhead() []string {
	days := model.WeekAhead(s.now().In(s.loc))
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, model.DateKey(d))
	}
	return out
}

// Tiles summarises every catalog spot for date, in layout order.
func (s *ScheduleService) Tiles(date string) ([]Tile, error) {
	if err := s.checkDate(date); err != nil {
		return nil, err
	}
	day := s.store.Day(date)
	spots := s.catalog.Spots()
	out := make([]Tile, 0, len(spots))
	for _, sp := range spots {
		status, partial, occupied := TileStatusOf(day[sp.ID])
		out = append(out, Tile{Spot: sp, Status: status, Partial: partial, Occupied: occupied})
	}
	return out, nil
}

// TileStatusOf derives a tile's state from the spot's recorded hours.  A
// spot without any recorded hour is free.  Hours off the grid are ignored.
func TileStatusOf(hours model.SpotHours) (status TileStatus, partial bool, occupied int) {
	free := 0
	for h, v := range hours {
		if !model.ValidHour(h) {
			continue
		}
		if model.IsFree(v) {
			free++
		} else {
			occupied++
		}
	}
	if occupied == 0 {
		return TileFree, false, 0
	}
	return TileOccupied, free > 0, occupied
}

// Hours lists the hours of spot on date that pass filter.
func (s *ScheduleService) Hours(date, spotID string, filter HourFilter) ([]HourSlot, error) {
	if err := s.checkDate(date); err != nil {
		return nil, err
	}
	if _, err := s.spot(spotID); err != nil {
		return nil, err
	}
	hours := s.store.SpotHours(date, spotID)
	visible := filter.Apply(hours)
	out := make([]HourSlot, 0, len(visible))
	for _, h := range visible {
		v, recorded := hours[h]
		out = append(out, HourSlot{
			Hour:     h,
			Label:    fmt.Sprintf("%02d:00", h),
			Occupant: v,
			Free:     model.IsFree(v),
			Recorded: recorded,
		})
	}
	return out, nil
}

// SetOccupant validates occupant against the spot's rules and writes it.
// An empty occupant on an ordinary spot frees the hour.
func (s *ScheduleService) SetOccupant(ctx context.Context, date, spotID string, hour int, occupant string) (model.SpotHours, error) {
	sp, err := s.target(date, spotID, hour)
	if err != nil {
		return nil, err
	}
	if err := validation.Occupant(sp.Kind, occupant); err != nil {
		return nil, err
	}
	return s.write(ctx, date, spotID, model.SpotHours{hour: occupant})
}

// ClearHour frees one hour.  Clearing is never validated.
func (s *ScheduleService) ClearHour(ctx context.Context, date, spotID string, hour int) (model.SpotHours, error) {
	if _, err := s.target(date, spotID, hour); err != nil {
		return nil, err
	}
	return s.write(ctx, date, spotID, model.SpotHours{hour: ""})
}

// ClearVisible frees every hour of spot that passes filter and returns the
// hours it touched.
func (s *ScheduleService) ClearVisible(ctx context.Context, date, spotID string, filter HourFilter) ([]int, error) {
	return s.fillVisible(ctx, date, spotID, filter, func(model.Spot) string { return "" })
}

// ResetVisible writes the spot's default occupant into every hour that
// passes filter and returns the hours it touched.
func (s *ScheduleService) ResetVisible(ctx context.Context, date, spotID string, filter HourFilter) ([]int, error) {
	return s.fillVisible(ctx, date, spotID, filter, func(sp model.Spot) string { return sp.DefaultOccupant })
}

func (s *ScheduleService) fillVisible(ctx context.Context, date, spotID string, filter HourFilter, value func(model.Spot) string) ([]int, error) {
	if err := s.checkDate(date); err != nil {
		return nil, err
	}
	sp, err := s.spot(spotID)
	if err != nil {
		return nil, err
	}
	visible := filter.Apply(s.store.SpotHours(date, spotID))
	if len(visible) == 0 {
		return visible, nil
	}
	patch := make(model.SpotHours, len(visible))
	v := value(sp)
	for _, h := range visible {
		patch[h] = v
	}
	if _, err := s.write(ctx, date, spotID, patch); err != nil {
		return nil, err
	}
	return visible, nil
}

func (s *ScheduleService) write(ctx context.Context, date, spotID string, hours model.SpotHours) (model.SpotHours, error) {
	out, err := s.store.Apply(ctx, model.Patch(date, spotID, hours), store.OriginLocal, nil)
	if err != nil {
		return nil, err
	}
	return out[date][spotID], nil
}

func (s *ScheduleService) target(date, spotID string, hour int) (model.Spot, error) {
	if err := s.checkDate(date); err != nil {
		return model.Spot{}, err
	}
	sp, err := s.spot(spotID)
	if err != nil {
		return model.Spot{}, err
	}
	if !model.ValidHour(hour) {
		return model.Spot{}, fmt.Errorf("%w: %d", ErrInvalidHour, hour)
	}
	return sp, nil
}

func (s *ScheduleService) spot(id string) (model.Spot, error) {
	sp, ok := s.catalog.Lookup(id)
	if !ok {
		return model.Spot{}, fmt.Errorf("%w: %q", ErrUnknownSpot, id)
	}
	return sp, nil
}

func (s *ScheduleService) checkDate(date string) error {
	_, err := model.ParseDateKey(date, s.loc)
	return err
}
