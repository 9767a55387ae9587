package availability

import (
	"fmt"
	"time"
)

// TimeWindow is a half-open interval [Start, End) within one day.
type TimeWindow struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// NewTimeWindow rejects windows that end before they start. Zero-length
// windows are allowed and contain nothing.
func NewTimeWindow(start, end TimeOfDay) (TimeWindow, error) {
	w := TimeWindow{Start: start, End: end}
	if end < start {
		return w, fmt.Errorf("%w: %s-%s", ErrInvalidWindow, start, end)
	}
	return w, nil
}

func (w TimeWindow) Contains(t TimeOfDay) bool {
	return w.Start <= t && t < w.End
}

func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start < other.End && other.Start < w.End
}

func (w TimeWindow) Empty() bool {
	return w.End <= w.Start
}

func (w TimeWindow) Duration() (time.Duration, error) {
	if w.End < w.Start {
		return 0, fmt.Errorf("%w: %s-%s", ErrInvalidWindow, w.Start, w.End)
	}
	return w.End.Sub(w.Start), nil
}

func (w TimeWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}
