package service

import "github.com/iliyamo/parking-schedule/internal/export"

// Calendar renders the occupied hours of date as an iCalendar feed.
func (s *ScheduleService) Calendar(date string) (string, error) {
	if err := s.checkDate(date); err != nil {
		return "", err
	}
	return export.DayCalendar(date, s.store.Day(date), s.catalog, s.loc, s.now().UTC())
}
