package availability

import "time"

const SlotLength = 30 * time.Minute

// AvailableSlots enumerates 30-minute slot starts in [StartTime, EndTime) and
// drops those whose start exactly matches a booked time. Lunch is not excluded.
func AvailableSlots(s *DoctorDailySchedule, booked []TimeOfDay) []TimeOfDay {
	taken := make(map[TimeOfDay]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}

	var slots []TimeOfDay
	for t := s.StartTime; t < s.EndTime; t = t.Add(SlotLength) {
		if _, ok := taken[t]; ok {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}

// BookedTimes extracts the wall-clock times of appointments on date.
func BookedTimes(date time.Time, appts []time.Time) []TimeOfDay {
	day := DateOf(date)
	out := make([]TimeOfDay, 0, len(appts))
	for _, at := range appts {
		if DateOf(at).Equal(day) {
			out = append(out, TimeOfDayOf(at))
		}
	}
	return out
}
