package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunExecutesAllSteps(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var order []string
	boom := errors.New("boom")

	err := Run(log, time.Second,
		Step{Name: "http", Stop: func(context.Context) error { order = append(order, "http"); return nil }},
		Step{Name: "relay", Stop: func(context.Context) error { order = append(order, "relay"); return boom }},
		Step{Name: "db", Stop: func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			order = append(order, "db")
			return nil
		}},
	)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"http", "relay", "db"}, order)
}
