package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// Step is one named stop function run during shutdown.
type Step struct {
	Name string
	Stop func(context.Context) error
}

// Run executes steps in order, sharing a single timeout. Every step runs even
// if an earlier one fails.
func Run(log *slog.Logger, timeout time.Duration, steps ...Step) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, s := range steps {
		if err := s.Stop(ctx); err != nil {
			log.Error("shutdown step failed", "step", s.Name, "err", err)
			errs = append(errs, err)
			continue
		}
		log.Info("shutdown step done", "step", s.Name)
	}
	return errors.Join(errs...)
}
