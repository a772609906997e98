// Package export renders a day of the schedule as an iCalendar feed so the
// occupancy of the lot can be subscribed to from a calendar client.
package export

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/iliyamo/parking-schedule/internal/catalog"
	"github.com/iliyamo/parking-schedule/internal/model"
)

const productID = "-//parking-schedule//hourly occupancy//EN"

// uidSpace namespaces event UIDs so one slot always maps to the same UID.
var uidSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:parking-schedule:slot"))

// SlotUID returns the stable event UID of one hour of one spot.
func SlotUID(date, spotID string, hour int) string {
	return uuid.NewSHA1(uidSpace, []byte(fmt.Sprintf("%s/%s/%d", date, spotID, hour))).String()
}

// DayCalendar builds a VCALENDAR with one one-hour VEVENT per occupied slot
// of date.  Spots are visited in catalog order; spots missing from the
// catalog are skipped.  stamp is written as DTSTAMP.
func DayCalendar(date string, day model.DaySchedule, cat *catalog.Catalog, loc *time.Location, stamp time.Time) (string, error) {
	midnight, err := model.ParseDateKey(date, loc)
	if err != nil {
		return "", err
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Parking " + date)

	for _, sp := range cat.Spots() {
		hours := day[sp.ID]
		for _, h := range model.Hours() {
			occupant := hours[h]
			if model.IsFree(occupant) {
				continue
			}
			start := time.Date(midnight.Year(), midnight.Month(), midnight.Day(), h, 0, 0, 0, midnight.Location())
			ev := cal.AddEvent(SlotUID(date, sp.ID, h))
			ev.SetDtStampTime(stamp)
			ev.SetStartAt(start)
			ev.SetEndAt(start.Add(time.Hour))
			ev.SetSummary(fmt.Sprintf("%s: %s", sp.ID, firstLine(occupant)))
			ev.SetLocation(sp.ID)
			ev.SetDescription(occupant)
		}
	}
	return cal.Serialize(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
