package remote

import (
	"log"

	"github.com/iliyamo/parking-schedule/internal/catalog"
	"github.com/iliyamo/parking-schedule/internal/model"
	"github.com/iliyamo/parking-schedule/internal/validation"
)

// Sanitize returns the part of an inbound patch that may be merged: dates
// that parse, spots in cat and hours on the grid.  Non-empty labels must pass
// the occupant rules of their spot unless they equal its default occupant,
// which is what a reset writes.  Every dropped entry is logged with from.
// The second result counts dropped entries.
func Sanitize(patch model.Schedule, cat *catalog.Catalog, from string) (model.Schedule, int) {
	out := make(model.Schedule, len(patch))
	dropped := 0
	for date, day := range patch {
		if _, err := model.ParseDateKey(date, nil); err != nil {
			log.Printf("sync: dropping date %q from %s: %v", date, from, err)
			dropped++
			continue
		}
		clean := make(model.DaySchedule, len(day))
		for spotID, hours := range day {
			spot, ok := cat.Lookup(spotID)
			if !ok {
				log.Printf("sync: dropping unknown spot %q on %s from %s", spotID, date, from)
				dropped++
				continue
			}
			kept := make(model.SpotHours, len(hours))
			for hour, v := range hours {
				if !model.ValidHour(hour) {
					log.Printf("sync: dropping hour %d of %s on %s from %s", hour, spotID, date, from)
					dropped++
					continue
				}
				if v != "" && v != spot.DefaultOccupant {
					if err := validation.Occupant(spot.Kind, v); err != nil {
						log.Printf("sync: dropping %s %s@%d from %s: %v", date, spotID, hour, from, err)
						dropped++
						continue
					}
				}
				kept[hour] = v
			}
			if len(kept) > 0 || len(hours) == 0 {
				clean[spotID] = kept
			}
		}
		if len(clean) > 0 || len(day) == 0 {
			out[date] = clean
		}
	}
	return out, dropped
}
