package availability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestCompletionJob_Run(t *testing.T) {
	env := newTestEnv()
	yesterday := DateOf(serviceNow).AddDate(0, 0, -1)
	past := &Appointment{DoctorID: 1, PatientID: 7, DateTime: Clock(9, 0).On(yesterday), Status: StatusScheduled}
	cancelled := &Appointment{DoctorID: 1, PatientID: 7, DateTime: Clock(9, 30).On(yesterday), Status: StatusCancelled}
	future := &Appointment{DoctorID: 1, PatientID: 7, DateTime: Clock(9, 0).On(tomorrow), Status: StatusScheduled}
	for _, a := range []*Appointment{past, cancelled, future} {
		if err := env.appts.Create(context.Background(), a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	var buf bytes.Buffer
	job := NewCompletionJob(env.svc, zerolog.New(&buf))
	job.Run()

	if !strings.Contains(buf.String(), `"completed":1`) {
		t.Errorf("expected completion count in log, got %s", buf.String())
	}
	check := func(a *Appointment, want AppointmentStatus) {
		t.Helper()
		got, err := env.appts.GetByID(context.Background(), a.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != want {
			t.Errorf("appointment at %v: expected %s, got %s", a.DateTime, want, got.Status)
		}
	}
	check(past, StatusCompleted)
	check(cancelled, StatusCancelled)
	check(future, StatusScheduled)

	buf.Reset()
	job.Run()
	if strings.Contains(buf.String(), `"completed"`) {
		t.Errorf("second run should complete nothing, got %s", buf.String())
	}
}

func TestStartCompletionJob(t *testing.T) {
	job := NewCompletionJob(newTestEnv().svc, zerolog.Nop())

	c, err := StartCompletionJob("", job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Errorf("expected 1 cron entry, got %d", len(c.Entries()))
	}
	<-c.Stop().Done()

	if _, err := StartCompletionJob("every quarter hour", job); err == nil {
		t.Error("expected error for an invalid spec")
	}
}
