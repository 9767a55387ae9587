package availability

import "time"

// Activity is one filler entry in a doctor's day.
type Activity struct {
	At    TimeOfDay `json:"at"`
	Label string    `json:"label"`
}

func (a Activity) String() string {
	return "(" + a.At.Format12h() + ") - " + a.Label
}

var (
	noon          = Clock(12, 0)
	afternoonFrom = Clock(15, 0)
	wrapUpAfter   = Clock(17, 0)
)

const WrapUpLabel = "Wrap-up: patient notes and handover"

// ActivityPlanner tiles a working day with labelled activities, skipping lunch.
type ActivityPlanner struct {
	Morning   []string
	Midday    []string
	Afternoon []string
}

func NewActivityPlanner() *ActivityPlanner {
	return &ActivityPlanner{
		Morning: []string{
			"Ward rounds",
			"Review overnight admissions",
			"Outpatient consultations",
			"Team briefing",
		},
		Midday: []string{
			"Outpatient consultations",
			"Procedures",
			"Review lab results",
			"Case discussion with residents",
		},
		Afternoon: []string{
			"Follow-up consultations",
			"Discharge planning",
			"Clinical documentation",
			"Multidisciplinary meeting",
		},
	}
}

// Plan returns activities in non-decreasing time order. The cursor advances on
// every iteration, so Plan terminates for any schedule.
func (p *ActivityPlanner) Plan(s *DoctorDailySchedule, r Rand) []Activity {
	lunch := s.Lunch()
	var out []Activity

	cursor := s.StartTime
	for cursor < s.EndTime {
		if lunch.Contains(cursor) {
			cursor = lunch.End
			if cursor >= s.EndTime {
				break
			}
			continue
		}

		labels := p.band(cursor, lunch.Start)
		if len(labels) == 0 {
			cursor = cursor.Add(30 * time.Minute)
			continue
		}

		out = append(out, Activity{At: cursor, Label: labels[r.IntN(len(labels))]})
		cursor = cursor.Add(time.Duration(between(r, 45, 90)) * time.Minute)
	}

	wrapUp := s.EndTime.Add(-30 * time.Minute)
	if len(out) > 0 && s.EndTime > wrapUpAfter && out[len(out)-1].At < wrapUp {
		out = append(out, Activity{At: wrapUp, Label: WrapUpLabel})
	}
	return out
}

func (p *ActivityPlanner) band(cursor, lunchStart TimeOfDay) []string {
	switch {
	case cursor < noon && cursor < lunchStart:
		return p.Morning
	case cursor >= noon && cursor < afternoonFrom:
		return p.Midday
	case cursor >= afternoonFrom:
		return p.Afternoon
	}
	return nil
}

// FormatActivities renders activities as "(3:04 PM) - label" lines.
func FormatActivities(acts []Activity) []string {
	lines := make([]string, 0, len(acts))
	for _, a := range acts {
		lines = append(lines, a.String())
	}
	return lines
}
