package availability

import (
	"strings"
	"testing"
)

func checkPlan(t *testing.T, s *DoctorDailySchedule, acts []Activity) {
	t.Helper()
	for i, a := range acts {
		if a.Label == WrapUpLabel {
			if i != len(acts)-1 {
				t.Fatalf("wrap-up entry at position %d of %d", i, len(acts))
			}
			continue
		}
		if a.At < s.StartTime || a.At >= s.EndTime {
			t.Fatalf("activity %s outside working hours %s", a.At, s.Working())
		}
		if s.Lunch().Contains(a.At) {
			t.Fatalf("activity %s inside lunch %s", a.At, s.Lunch())
		}
		if i > 0 && a.At < acts[i-1].At {
			t.Fatalf("activities out of order: %s after %s", a.At, acts[i-1].At)
		}
	}
}

func TestPlan_GeneratedSchedules(t *testing.T) {
	g := NewScheduleGenerator()
	p := NewActivityPlanner()

	for i := 0; i < propertySeeds; i++ {
		s := g.Generate(1, testDate, seeded(i))
		acts := p.Plan(s, seeded(i+propertySeeds))
		if len(acts) == 0 {
			t.Fatalf("seed %d: expected activities for %s", i, s.Working())
		}
		checkPlan(t, s, acts)
	}
}

func TestPlan_LunchSpansWholeDay(t *testing.T) {
	s := &DoctorDailySchedule{
		StartTime: Clock(9, 0), EndTime: Clock(17, 0),
		LunchStart: Clock(9, 0), LunchEnd: Clock(17, 0),
	}
	acts := NewActivityPlanner().Plan(s, seeded(1))
	if len(acts) != 0 {
		t.Errorf("expected no activities, got %v", acts)
	}
}

func TestPlan_LunchBeforeNoonLeavesGap(t *testing.T) {
	// 10:30-11:00 lunch: a cursor between lunch end and noon matches no band
	// and must step forward in 30 minute increments.
	s := &DoctorDailySchedule{
		StartTime: Clock(9, 0), EndTime: Clock(13, 0),
		LunchStart: Clock(10, 30), LunchEnd: Clock(11, 0),
	}
	p := NewActivityPlanner()
	for i := 0; i < 500; i++ {
		acts := p.Plan(s, seeded(i))
		checkPlan(t, s, acts)
		for _, a := range acts {
			if a.At >= Clock(11, 0) && a.At < noon {
				t.Fatalf("seed %d: unexpected activity in the post-lunch morning gap at %s", i, a.At)
			}
		}
	}
}

func TestPlan_WrapUp(t *testing.T) {
	late := &DoctorDailySchedule{
		StartTime: Clock(10, 0), EndTime: Clock(18, 0),
		LunchStart: Clock(12, 30), LunchEnd: Clock(13, 15),
	}
	p := NewActivityPlanner()
	for i := 0; i < 200; i++ {
		acts := p.Plan(late, seeded(i))
		last := acts[len(acts)-1]
		if last.Label != WrapUpLabel {
			// The only way to miss it is a last activity already at or past 17:30.
			if last.At < Clock(17, 30) {
				t.Fatalf("seed %d: expected wrap-up after %s", i, last.At)
			}
			continue
		}
		if last.At != Clock(17, 30) {
			t.Fatalf("seed %d: wrap-up at %s, want 17:30", i, last.At)
		}
	}

	early := &DoctorDailySchedule{
		StartTime: Clock(8, 0), EndTime: Clock(16, 0),
		LunchStart: Clock(12, 0), LunchEnd: Clock(12, 30),
	}
	for i := 0; i < 200; i++ {
		for _, a := range p.Plan(early, seeded(i)) {
			if a.Label == WrapUpLabel {
				t.Fatalf("seed %d: no wrap-up expected for a day ending at 16:00", i)
			}
		}
	}
}

func TestPlan_BandLabels(t *testing.T) {
	p := &ActivityPlanner{
		Morning:   []string{"morning"},
		Midday:    []string{"midday"},
		Afternoon: []string{"afternoon"},
	}
	s := &DoctorDailySchedule{
		StartTime: Clock(8, 0), EndTime: Clock(17, 0),
		LunchStart: Clock(13, 0), LunchEnd: Clock(13, 30),
	}
	for _, a := range p.Plan(s, seeded(9)) {
		var want string
		switch {
		case a.At < noon:
			want = "morning"
		case a.At < afternoonFrom:
			want = "midday"
		default:
			want = "afternoon"
		}
		if a.Label != want {
			t.Errorf("activity at %s labelled %q, want %q", a.At, a.Label, want)
		}
	}
}

func TestFormatActivities(t *testing.T) {
	lines := FormatActivities([]Activity{
		{At: Clock(9, 0), Label: "Ward rounds"},
		{At: Clock(14, 45), Label: "Procedures"},
	})
	want := []string{"(9:00 AM) - Ward rounds", "(2:45 PM) - Procedures"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("FormatActivities() = %v, want %v", lines, want)
	}
}
