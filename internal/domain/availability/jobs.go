package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const DefaultCompletionSpec = "@every 15m"

// CompletionJob marks Scheduled appointments whose time has passed as Completed.
type CompletionJob struct {
	svc     *Service
	logger  zerolog.Logger
	timeout time.Duration
}

func NewCompletionJob(svc *Service, logger zerolog.Logger) *CompletionJob {
	return &CompletionJob{svc: svc, logger: logger, timeout: time.Minute}
}

// Run implements cron.Job.
func (j *CompletionJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.svc.CompletePastAppointments(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("completion job failed")
		return
	}
	if n == 0 {
		j.logger.Debug().Msg("completion job: no past appointments")
		return
	}
	j.logger.Info().Int64("completed", n).Msg("completion job: appointments marked completed")
}

// StartCompletionJob schedules job on spec and starts the cron runner.
// Stop the returned runner on shutdown.
func StartCompletionJob(spec string, job cron.Job) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultCompletionSpec
	}
	c := cron.New()
	if _, err := c.AddJob(spec, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(job)); err != nil {
		return nil, fmt.Errorf("schedule completion job %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
