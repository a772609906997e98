package service

import (
	"fmt"
	"strings"

	"github.com/iliyamo/parking-schedule/internal/model"
)

// Occupancy selects hours by whether they hold an occupant.
type Occupancy string

const (
	OccupancyAll      Occupancy = "all"
	OccupancyOccupied Occupancy = "occupied"
	OccupancyFree     Occupancy = "free"
)

// Band selects hours by time of day.
type Band string

const (
	BandAll       Band = "all"
	BandMorning   Band = "morning"   // 07:00-12:00
	BandAfternoon Band = "afternoon" // 13:00-19:00
)

// lastMorningHour is the final hour of the morning band.
const lastMorningHour = 12

// HourFilter narrows the hours of one spot.  All criteria must match.  The
// zero value matches every hour.
type HourFilter struct {
	Occupancy Occupancy
	Band      Band
	Search    string
}

// ParseHourFilter builds a filter from raw query values.  Empty values mean
// "all"; unknown values are rejected.
func ParseHourFilter(occupancy, band, search string) (HourFilter, error) {
	f := HourFilter{Search: strings.TrimSpace(search)}
	switch o := Occupancy(strings.ToLower(strings.TrimSpace(occupancy))); o {
	case "", OccupancyAll:
		f.Occupancy = OccupancyAll
	case OccupancyOccupied, OccupancyFree:
		f.Occupancy = o
	default:
		return HourFilter{}, fmt.Errorf("%w: occupancy %q", ErrInvalidFilter, occupancy)
	}
	switch b := Band(strings.ToLower(strings.TrimSpace(band))); b {
	case "", BandAll:
		f.Band = BandAll
	case BandMorning, BandAfternoon:
		f.Band = b
	default:
		return HourFilter{}, fmt.Errorf("%w: band %q", ErrInvalidFilter, band)
	}
	return f, nil
}

// Apply returns the hours of spotHours that pass the filter, ascending.
// Unrecorded hours count as free and never match a search term.
func (f HourFilter) Apply(spotHours model.SpotHours) []int {
	needle := strings.ToLower(f.Search)
	out := make([]int, 0, model.LastHour-model.FirstHour+1)
	for _, h := range model.Hours() {
		if !f.inBand(h) {
			continue
		}
		v := spotHours[h]
		occupied := !model.IsFree(v)
		switch f.Occupancy {
		case OccupancyOccupied:
			if !occupied {
				continue
			}
		case OccupancyFree:
			if occupied {
				continue
			}
		}
		if needle != "" && !strings.Contains(strings.ToLower(v), needle) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func (f HourFilter) inBand(h int) bool {
	switch f.Band {
	case BandMorning:
		return h <= lastMorningHour
	case BandAfternoon:
		return h > lastMorningHour
	}
	return true
}
