package model

// FirstHour and LastHour bound the hourly grid shown for every spot.  Both
// ends are inclusive, giving thirteen slots per spot per day.
const (
	FirstHour = 7
	LastHour  = 19
)

// SpotHours maps an hour slot (FirstHour..LastHour) to its occupancy.  An
// empty string marks the slot as free; any other value is the occupant
// label.  Hours that are absent have never been recorded and are treated as
// free.  Hours are encoded as decimal strings in JSON.
type SpotHours map[int]string

// DaySchedule maps a spot id to that spot's hours on one date.
type DaySchedule map[string]SpotHours

// Schedule is the complete occupancy record: date key, then spot id, then
// hour.  The same type doubles as a patch for Merge; a patch only carries
// the leaves it wants to replace.
type Schedule map[string]DaySchedule

// Hours returns every hour slot in ascending order.
func Hours() []int {
	out := make([]int, 0, LastHour-FirstHour+1)
	for h := FirstHour; h <= LastHour; h++ {
		out = append(out, h)
	}
	return out
}

// ValidHour reports whether h is one of the grid's hour slots.
func ValidHour(h int) bool { return h >= FirstHour && h <= LastHour }

// IsFree reports whether the slot value denotes a free slot.
func IsFree(v string) bool { return v == "" }

// Merge combines current with patch and returns a new schedule.  Leaf values
// present in patch replace the same leaves in current; every key that only
// exists in current is kept.  Neither argument is modified and the result
// shares no maps with them, so callers may mutate it freely.
func Merge(current, patch Schedule) Schedule {
	out := current.Clone()
	for date, patchDay := range patch {
		day, ok := out[date]
		if !ok || day == nil {
			day = make(DaySchedule, len(patchDay))
			out[date] = day
		}
		for spot, patchHours := range patchDay {
			hours, ok := day[spot]
			if !ok || hours == nil {
				hours = make(SpotHours, len(patchHours))
				day[spot] = hours
			}
			for hour, v := range patchHours {
				hours[hour] = v
			}
		}
	}
	return out
}

// Clone returns a deep copy of s.  A nil schedule clones to an empty one.
func (s Schedule) Clone() Schedule {
	out := make(Schedule, len(s))
	for date, day := range s {
		out[date] = day.Clone()
	}
	return out
}

// Clone returns a deep copy of d.
func (d DaySchedule) Clone() DaySchedule {
	out := make(DaySchedule, len(d))
	for spot, hours := range d {
		out[spot] = hours.Clone()
	}
	return out
}

// Clone returns a copy of h.
func (h SpotHours) Clone() SpotHours {
	out := make(SpotHours, len(h))
	for hour, v := range h {
		out[hour] = v
	}
	return out
}

// Lookup returns the occupancy recorded for one slot and whether the slot
// has ever been recorded.
func (s Schedule) Lookup(date, spot string, hour int) (string, bool) {
	v, ok := s[date][spot][hour]
	return v, ok
}

// Patch builds a single-spot patch for one date.
func Patch(date, spot string, hours SpotHours) Schedule {
	return Schedule{date: DaySchedule{spot: hours.Clone()}}
}
