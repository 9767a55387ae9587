package availability

import (
	"testing"
	"time"
)

const propertySeeds = 5000

func seeded(i int) Rand {
	return NewRand(uint64(i), uint64(i)*0x9e3779b97f4a7c15+1)
}

var testDate = time.Date(2030, 6, 3, 0, 0, 0, 0, time.UTC)

func TestGenerate_InvariantsHoldForAllSeeds(t *testing.T) {
	g := NewScheduleGenerator()

	for i := 0; i < propertySeeds; i++ {
		s := g.Generate(7, testDate, seeded(i))

		if err := s.Validate(); err != nil {
			t.Fatalf("seed %d: %v (%s lunch %s)", i, err, s.Working(), s.Lunch())
		}
		if s.StartTime < Clock(8, 0) || s.StartTime > Clock(10, 45) {
			t.Fatalf("seed %d: start %s outside 08:00-10:45", i, s.StartTime)
		}
		if s.StartTime.Minute()%15 != 0 {
			t.Fatalf("seed %d: start %s not on a quarter hour", i, s.StartTime)
		}
		if s.EndTime > DefaultMaxWorkTime {
			t.Fatalf("seed %d: end %s after 18:00", i, s.EndTime)
		}
		work := s.EndTime.Sub(s.StartTime)
		if work < 4*time.Hour || work > 7*time.Hour {
			t.Fatalf("seed %d: work duration %v outside 4h-7h", i, work)
		}
		if s.LunchStart.Minute()%15 != 0 {
			t.Fatalf("seed %d: lunch start %s not on a quarter hour", i, s.LunchStart)
		}
		if s.LunchStart < s.StartTime.Add(time.Hour) {
			t.Fatalf("seed %d: lunch %s starts within the first hour of %s", i, s.LunchStart, s.StartTime)
		}
		lunch := s.LunchEnd.Sub(s.LunchStart)
		if lunch < 30*time.Minute || lunch > 90*time.Minute {
			t.Fatalf("seed %d: lunch length %v outside 30-90m", i, lunch)
		}
	}
}

func TestGenerate_TightBoundsStillValid(t *testing.T) {
	g := &ScheduleGenerator{
		MinWorkTime: Clock(8, 0),
		MaxWorkTime: Clock(9, 0),
	}
	for i := 0; i < propertySeeds; i++ {
		s := g.Generate(1, testDate, seeded(i))
		if err := s.Validate(); err != nil {
			t.Fatalf("seed %d: %v (%s lunch %s)", i, err, s.Working(), s.Lunch())
		}
		if s.Location != "" {
			t.Fatalf("seed %d: expected no location without a location list", i)
		}
	}
}

func TestGenerate_SameSeedSameSchedule(t *testing.T) {
	g := NewScheduleGenerator()
	for i := 0; i < 50; i++ {
		a := g.Generate(3, testDate, seeded(i))
		b := g.Generate(3, testDate, seeded(i))
		if *a != *b {
			t.Fatalf("seed %d: schedules differ: %+v vs %+v", i, a, b)
		}
	}
}

func TestGenerate_KeyAndBounds(t *testing.T) {
	g := NewScheduleGenerator()
	s := g.Generate(42, testDate.Add(15*time.Hour), seeded(1))

	if s.DoctorID != 42 {
		t.Errorf("expected doctor 42, got %d", s.DoctorID)
	}
	if !s.Date.Equal(testDate) {
		t.Errorf("expected date truncated to %v, got %v", testDate, s.Date)
	}
	if s.MinWorkTime != DefaultMinWorkTime || s.MaxWorkTime != DefaultMaxWorkTime {
		t.Errorf("unexpected generation bounds %s-%s", s.MinWorkTime, s.MaxWorkTime)
	}
	found := false
	for _, loc := range DefaultLocations {
		if loc == s.Location {
			found = true
		}
	}
	if !found {
		t.Errorf("location %q not drawn from the default list", s.Location)
	}
}

func TestRoundToQuarter(t *testing.T) {
	tests := []struct {
		in, want TimeOfDay
	}{
		{Clock(12, 0), Clock(12, 0)},
		{Clock(12, 7), Clock(12, 0)},
		{Clock(12, 8), Clock(12, 15)},
		{Clock(12, 52), Clock(12, 45)},
		{Clock(12, 53), Clock(13, 0)},
	}
	for _, tt := range tests {
		if got := roundToQuarter(tt.in); got != tt.want {
			t.Errorf("roundToQuarter(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
