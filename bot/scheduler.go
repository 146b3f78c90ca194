package bot

import (
	"context"
	"fmt"

	"discleanse/config"
	"discleanse/utils"

	"github.com/robfig/cron/v3"
)

// cronLogger routes cron's own messages into the package logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	utils.Debug("scheduler", "cron", fmt.Sprint(append([]interface{}{msg, " "}, keysAndValues...)...))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	utils.Error("scheduler", "cron", fmt.Sprintf("%s: %v %v", msg, err, keysAndValues))
}

// ValidateSpec checks a standard five-field cron spec or descriptor such as "@daily".
func ValidateSpec(spec string) error {
	if spec == "" {
		return &config.ConfigError{Key: "schedule.cron"}
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return &config.ConfigError{Key: "schedule.cron", Reason: err.Error()}
	}
	return nil
}

// newScheduler runs job on spec. A tick that fires while the previous job is
// still running is skipped.
func newScheduler(ctx context.Context, spec string, job func(context.Context)) (*cron.Cron, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})))
	if _, err := c.AddFunc(spec, func() { job(ctx) }); err != nil {
		return nil, fmt.Errorf("could not set up cron job: %w", err)
	}
	return c, nil
}

// Schedule wipes the guild on every tick of spec until ctx is cancelled.
// A failed run is logged and the schedule continues.
func (b *Bot) Schedule(ctx context.Context, spec string) error {
	c, err := newScheduler(ctx, spec, func(ctx context.Context) {
		utils.Info("scheduler", "run", "scheduled wipe starting")
		if _, err := b.Wipe(ctx); err != nil {
			utils.Error("scheduler", "run", fmt.Sprintf("scheduled wipe failed: %v", err))
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	utils.Info("scheduler", "start", fmt.Sprintf("wipe scheduled with %q", spec))

	<-ctx.Done()
	<-c.Stop().Done()
	utils.Info("scheduler", "stop", "scheduler stopped")
	return nil
}
