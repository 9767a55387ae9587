package availability

import (
	"math/rand/v2"
	"time"
)

// Rand is the subset of *rand.Rand the generators draw from.
type Rand interface {
	IntN(n int) int
}

// NewRand returns a PCG-backed source. Equal seeds give equal sequences.
func NewRand(seed1, seed2 uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed1, seed2))
}

// TimeSeededRand is the default per-call source used outside tests.
func TimeSeededRand() Rand {
	now := uint64(time.Now().UnixNano())
	return NewRand(now, now>>17|now<<47)
}

var (
	DefaultMinWorkTime = Clock(8, 0)
	DefaultMaxWorkTime = Clock(18, 0)

	DefaultLocations = []string{
		"Outpatient Clinic A",
		"Outpatient Clinic B",
		"Cardiology Wing",
		"General Medicine, Floor 2",
		"Emergency Department",
	}
)

var quarterMinutes = [...]int{0, 15, 30, 45}

// ScheduleGenerator synthesizes a bounded-random working day.
type ScheduleGenerator struct {
	MinWorkTime TimeOfDay
	MaxWorkTime TimeOfDay
	Locations   []string
}

func NewScheduleGenerator() *ScheduleGenerator {
	return &ScheduleGenerator{
		MinWorkTime: DefaultMinWorkTime,
		MaxWorkTime: DefaultMaxWorkTime,
		Locations:   DefaultLocations,
	}
}

// Generate draws a schedule for (doctorID, date). The result always satisfies
// DoctorDailySchedule.Validate.
func (g *ScheduleGenerator) Generate(doctorID int64, date time.Time, r Rand) *DoctorDailySchedule {
	maxEnd := g.MaxWorkTime

	start := Clock(between(r, 8, 10), quarter(r))
	if start < g.MinWorkTime {
		start = g.MinWorkTime
	}

	end := minTime(start.Add(time.Duration(between(r, 4, 7))*time.Hour), maxEnd)
	if end <= start.Add(30*time.Minute) {
		end = minTime(start.Add(time.Duration(between(r, 2, 5))*time.Hour), maxEnd)
	}
	if end <= start {
		end = start.Add(30 * time.Minute)
	}

	lunchStart := Clock(between(r, 12, 13), quarter(r))
	if earliest := start.Add(time.Hour); lunchStart < earliest {
		lunchStart = earliest
	}
	if lunchStart > end.Add(-90*time.Minute) {
		lunchStart = roundToQuarter(end - TimeOfDay(between(r, 120, 180)))
	}
	lunchStart = clampTime(lunchStart, start, end)

	lunchEnd := minTime(lunchStart+TimeOfDay(between(r, 30, 90)), end)

	s := &DoctorDailySchedule{
		DoctorID:    doctorID,
		Date:        DateOf(date),
		StartTime:   start,
		EndTime:     end,
		LunchStart:  lunchStart,
		LunchEnd:    lunchEnd,
		MinWorkTime: g.MinWorkTime,
		MaxWorkTime: g.MaxWorkTime,
	}
	if len(g.Locations) > 0 {
		s.Location = g.Locations[r.IntN(len(g.Locations))]
	}
	return s
}

// between draws uniformly from [lo, hi].
func between(r Rand, lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}

func quarter(r Rand) int {
	return quarterMinutes[r.IntN(len(quarterMinutes))]
}

func roundToQuarter(t TimeOfDay) TimeOfDay {
	return ((t + 7) / 15) * 15
}

func minTime(a, b TimeOfDay) TimeOfDay {
	if a < b {
		return a
	}
	return b
}

func clampTime(t, lo, hi TimeOfDay) TimeOfDay {
	if t < lo {
		return lo
	}
	if t > hi {
		return hi
	}
	return t
}
