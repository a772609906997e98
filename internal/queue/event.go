package queue

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/parking-schedule/internal/store"
)

// ScheduleChangedEvent is published after a patch has been applied to the
// schedule.  It carries every slot the patch wrote so downstream consumers
// can keep an audit trail without reading the schedule itself.
type ScheduleChangedEvent struct {
	EventID   string       `json:"event_id"`
	Origin    string       `json:"origin"`
	Slots     []SlotChange `json:"slots"`
	ChangedAt string       `json:"changed_at"`
}

// SlotChange is one written hour.  An empty Occupant means the hour was
// freed.
type SlotChange struct {
	Date     string `json:"date"`
	SpotID   string `json:"spot_id"`
	Hour     int    `json:"hour"`
	Occupant string `json:"occupant"`
}

// NewScheduleChangedEvent flattens a store change into an event.  Slots are
// ordered by date, spot and hour so identical patches produce identical
// payloads apart from the id and timestamp.
func NewScheduleChangedEvent(ch store.Change, at time.Time) ScheduleChangedEvent {
	var slots []SlotChange
	for date, day := range ch.Patch {
		for spot, hours := range day {
			for hour, v := range hours {
				slots = append(slots, SlotChange{Date: date, SpotID: spot, Hour: hour, Occupant: v})
			}
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.SpotID != b.SpotID {
			return a.SpotID < b.SpotID
		}
		return a.Hour < b.Hour
	})
	return ScheduleChangedEvent{
		EventID:   uuid.NewString(),
		Origin:    string(ch.Origin),
		Slots:     slots,
		ChangedAt: at.UTC().Format(time.RFC3339),
	}
}
