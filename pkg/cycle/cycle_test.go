package cycle_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/catalogfi/autoswap/pkg/cycle"
	"github.com/catalogfi/autoswap/pkg/swap/evmswap"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockSwapper struct {
	directions []evmswap.Direction
	fail       map[int]error
}

func (swapper *mockSwapper) Swap(ctx context.Context, direction evmswap.Direction) (evmswap.Result, error) {
	i := len(swapper.directions)
	swapper.directions = append(swapper.directions, direction)
	if err, ok := swapper.fail[i]; ok {
		return evmswap.Result{Direction: direction}, err
	}
	return evmswap.Result{
		Direction:    direction,
		Amount:       decimal.RequireFromString("0.0123"),
		AmountIn:     big.NewInt(123),
		MinAmountOut: big.NewInt(233),
	}, nil
}

type fixedDelay time.Duration

func (d fixedDelay) Delay() time.Duration {
	return time.Duration(d)
}

type mockNotifier struct {
	records []cycle.Record
	err     error
}

func (notifier *mockNotifier) Notify(ctx context.Context, record cycle.Record) error {
	notifier.records = append(notifier.records, record)
	return notifier.err
}

var _ = Describe("Runner", func() {
	var (
		swapper  *mockSwapper
		notifier *mockNotifier
		logs     *observer.ObservedLogs
		runner   *cycle.Runner
		slept    []time.Duration
	)

	BeforeEach(func() {
		swapper = &mockSwapper{fail: map[int]error{}}
		notifier = &mockNotifier{}
		slept = nil

		core, observed := observer.New(zapcore.InfoLevel)
		logs = observed
		runner = cycle.NewRunner(swapper, fixedDelay(15*time.Second), notifier, zap.New(core)).
			WithSleep(func(ctx context.Context, d time.Duration) error {
				slept = append(slept, d)
				return nil
			})
	})

	It("should alternate directions and keep going after failures", func() {
		swapper.fail[3] = fmt.Errorf("swap token->native: %w", evmswap.ErrReverted)
		swapper.fail[4] = errors.New("wait for tx 0xabc: connection reset")

		summary, err := runner.Run(context.Background(), cycle.DefaultIterations)
		Expect(err).Should(BeNil())
		Expect(swapper.directions).Should(Equal([]evmswap.Direction{
			evmswap.NativeToToken, evmswap.TokenToNative,
			evmswap.NativeToToken, evmswap.TokenToNative,
			evmswap.NativeToToken, evmswap.TokenToNative,
			evmswap.NativeToToken, evmswap.TokenToNative,
			evmswap.NativeToToken, evmswap.TokenToNative,
		}))
		Expect(slept).Should(HaveLen(10))
		Expect(summary.Records).Should(HaveLen(10))
		Expect(summary.Succeeded()).Should(Equal(8))
		Expect(summary.Failed()).Should(Equal(2))
		Expect(summary.Records[3].Err).Should(MatchError(evmswap.ErrReverted))

		Expect(logs.FilterMessage("❌ [Swap]").Len()).Should(Equal(2))
		Expect(logs.FilterMessage("🏁 [Cycle] completed").Len()).Should(Equal(1))
		Expect(notifier.records).Should(HaveLen(10))
		Expect(notifier.records[9].Iteration).Should(Equal(9))
	})

	It("should complete immediately with no iterations", func() {
		summary, err := runner.Run(context.Background(), 0)
		Expect(err).Should(BeNil())
		Expect(swapper.directions).Should(BeEmpty())
		Expect(slept).Should(BeEmpty())
		Expect(summary.Records).Should(BeEmpty())
		Expect(logs.FilterMessage("🏁 [Cycle] completed").Len()).Should(Equal(1))
	})

	It("should not stop when the notifier fails", func() {
		notifier.err = errors.New("webhook unavailable")
		summary, err := runner.Run(context.Background(), 3)
		Expect(err).Should(BeNil())
		Expect(summary.Succeeded()).Should(Equal(3))
		Expect(logs.FilterMessage("notify").Len()).Should(Equal(3))
	})

	It("should return when cancelled during a pause", func() {
		ctx, cancel := context.WithCancel(context.Background())
		runner.WithSleep(func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			cancel()
			return cycle.Sleep(ctx, d)
		})

		summary, err := runner.Run(ctx, 5)
		Expect(err).Should(MatchError(context.Canceled))
		Expect(swapper.directions).Should(HaveLen(1))
		Expect(summary.Records).Should(HaveLen(1))
		Expect(logs.FilterMessage("🏁 [Cycle] completed").Len()).Should(Equal(0))
	})

	It("should sleep for the given duration", func() {
		start := time.Now()
		Expect(cycle.Sleep(context.Background(), 20*time.Millisecond)).Should(Succeed())
		Expect(time.Since(start)).Should(BeNumerically(">=", 20*time.Millisecond))
	})

	It("should render a summary table", func() {
		swapper.fail[1] = errors.New("approve: insufficient funds")
		summary, err := runner.Run(context.Background(), 2)
		Expect(err).Should(BeNil())

		buf := new(bytes.Buffer)
		summary.Render(buf)
		Expect(buf.String()).Should(ContainSubstring("native->token"))
		Expect(buf.String()).Should(ContainSubstring("0.0123"))
		Expect(buf.String()).Should(ContainSubstring("approve: insufficient funds"))
	})
})
