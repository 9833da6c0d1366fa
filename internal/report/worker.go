package report

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/decay-mcp/internal/memory"
)

// Reporter produces a decay summary of the current memory population.
type Reporter interface {
	DecayReport(ctx context.Context) (memory.Report, error)
}

// Start launches a periodic decay report worker. Decay is computed at
// read time, so the worker only observes and logs; it never deletes.
func Start(ctx context.Context, logger *log.Logger, interval time.Duration, reporter Reporter) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rep, err := reporter.DecayReport(ctx)
			if err != nil {
				logger.Warn("decay report failed", "error", err)
				continue
			}
			logger.Info("decay report",
				"total", rep.Total,
				"active", rep.Active,
				"faded", rep.Faded)
		}
	}
}
