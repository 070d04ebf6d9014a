package cycle

import (
	"context"
	"time"

	"github.com/catalogfi/autoswap/pkg/swap/evmswap"
	"go.uber.org/zap"
)

// DefaultIterations is the number of swaps a run performs when the caller does not say otherwise.
const DefaultIterations = 10

type Swapper interface {
	Swap(ctx context.Context, direction evmswap.Direction) (evmswap.Result, error)
}

// Delayer picks the pause between two iterations.
type Delayer interface {
	Delay() time.Duration
}

// Notifier is told about every finished iteration.
type Notifier interface {
	Notify(ctx context.Context, record Record) error
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Runner alternates swaps between the native coin and the token, pausing a random delay after each one. A failed
// iteration is logged and the run moves on; it never stops the loop.
type Runner struct {
	swapper  Swapper
	delays   Delayer
	notifier Notifier
	logger   *zap.Logger
	sleep    SleepFunc
}

func NewRunner(swapper Swapper, delays Delayer, notifier Notifier, logger *zap.Logger) *Runner {
	return &Runner{
		swapper:  swapper,
		delays:   delays,
		notifier: notifier,
		logger:   logger,
		sleep:    Sleep,
	}
}

// WithSleep replaces the function used to pause between iterations.
func (runner *Runner) WithSleep(sleep SleepFunc) *Runner {
	runner.sleep = sleep
	return runner
}

// Run performs n iterations. Iteration i sells the native coin when i is even and buys it back when i is odd. The
// returned error is only ever the context's, when it is cancelled during a pause.
func (runner *Runner) Run(ctx context.Context, n int) (Summary, error) {
	summary := Summary{Started: time.Now()}
	runner.logger.Info("🔁 [Cycle] starting", zap.Int("iterations", n))

	for i := 0; i < n; i++ {
		direction := evmswap.DirectionAt(i)
		logger := runner.logger.With(zap.Int("iteration", i), zap.Stringer("direction", direction))

		result, err := runner.swapper.Swap(ctx, direction)
		if err != nil {
			logger.Error("❌ [Swap]", zap.Error(err))
		}

		record := Record{
			Iteration: i,
			Direction: direction,
			Result:    result,
			Err:       err,
			Delay:     runner.delays.Delay(),
		}
		summary.Records = append(summary.Records, record)

		if err := runner.notifier.Notify(ctx, record); err != nil {
			logger.Warn("notify", zap.Error(err))
		}

		logger.Info("⏳ [Cycle] waiting", zap.Duration("delay", record.Delay))
		if err := runner.sleep(ctx, record.Delay); err != nil {
			summary.Finished = time.Now()
			return summary, err
		}
	}

	summary.Finished = time.Now()
	runner.logger.Info("🏁 [Cycle] completed",
		zap.Int("iterations", n),
		zap.Int("succeeded", summary.Succeeded()),
		zap.Int("failed", summary.Failed()))
	return summary, nil
}

// Sleep waits for d, returning early with the context error if ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
