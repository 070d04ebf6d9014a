package evmswap_test

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"time"

	"github.com/catalogfi/autoswap/pkg/amount"
	"github.com/catalogfi/autoswap/pkg/swap/evmswap"
	"github.com/catalogfi/autoswap/pkg/swap/evmswap/bindings"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Swapper", func() {
	var (
		ctx       context.Context
		tokenAddr common.Address
		options   evmswap.Options
		wallet    *fakeWallet
		router    *fakeRouter
		token     *fakeToken
		logs      *observer.ObservedLogs
		swapper   *evmswap.Swapper
		now       time.Time
	)

	newSwapper := func() *evmswap.Swapper {
		gen, err := amount.NewGenerator(rand.NewSource(42), 10*time.Second, 20*time.Second)
		Expect(err).Should(BeNil())
		core, observed := observer.New(zapcore.InfoLevel)
		logs = observed
		s := evmswap.NewSwapper(options, wallet, router, token, gen, zap.New(core))
		s.SetClock(func() time.Time { return now })
		return s
	}

	BeforeEach(func() {
		ctx = context.Background()
		tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
		options = evmswap.OptionsSomniaTestnet(tokenAddr)
		wallet = &fakeWallet{addr: common.HexToAddress("0x00000000000000000000000000000000000000bb")}
		router = &fakeRouter{}
		token = &fakeToken{decimals: 18}
		now = time.Unix(1700000000, 0)
		swapper = newSwapper()
	})

	Context("native to token", func() {
		It("should send one swap with the quote discounted by 5%", func() {
			result, err := swapper.SwapNativeToToken(ctx)
			Expect(err).Should(BeNil())
			Expect(router.calls).Should(HaveLen(1))
			Expect(wallet.sent).Should(HaveLen(1))

			call := router.calls[0]
			Expect(call.method).Should(Equal("swapExactETHForTokens"))
			Expect(call.path).Should(Equal([]common.Address{evmswap.SomniaWrappedNativeAddr, tokenAddr}))
			Expect(call.to).Should(Equal(wallet.addr))
			Expect(call.gasLimit).Should(Equal(uint64(300000)))
			Expect(call.deadline.Int64()).Should(Equal(now.Unix() + 600))
			Expect(call.value.Cmp(result.AmountIn)).Should(Equal(0))

			quote := new(big.Int).Mul(result.AmountIn, big.NewInt(2))
			Expect(result.Quote.Cmp(quote)).Should(Equal(0))
			expected := new(big.Int).Div(new(big.Int).Mul(quote, big.NewInt(95)), big.NewInt(100))
			Expect(call.amountOutMin.Cmp(expected)).Should(Equal(0))
			Expect(result.MinAmountOut.Cmp(expected)).Should(Equal(0))

			Expect(result.Direction).Should(Equal(evmswap.NativeToToken))
			Expect(result.Amount.GreaterThanOrEqual(decimal.RequireFromString("0.01"))).Should(BeTrue())
			Expect(result.Amount.LessThan(decimal.RequireFromString("0.05"))).Should(BeTrue())
			Expect(result.Amount.Exponent()).Should(BeNumerically(">=", -4))
			Expect(result.AmountIn.Cmp(amount.ToUnits(result.Amount, 18))).Should(Equal(0))
			Expect(result.TxHash).Should(Equal(wallet.sent[0].Hash()))
			Expect(result.Approved).Should(BeFalse())
			Expect(logs.FilterMessage("✅ [Swap]").Len()).Should(Equal(1))
		})

		It("should swap with a zero minimum when the quote fails", func() {
			router.quoteErr = errors.New("execution reverted")
			result, err := swapper.SwapNativeToToken(ctx)
			Expect(err).Should(BeNil())
			Expect(result.QuoteUnavailable).Should(BeTrue())
			Expect(result.MinAmountOut.Sign()).Should(Equal(0))
			Expect(router.calls).Should(HaveLen(1))
			Expect(router.calls[0].amountOutMin.Sign()).Should(Equal(0))

			errLogs := logs.FilterLevelExact(zapcore.ErrorLevel)
			Expect(errLogs.Len()).Should(Equal(1))
			Expect(errLogs.All()[0].Message).Should(Equal("get amounts out"))
		})

		It("should not swap when the quote fails in strict mode", func() {
			options = options.WithStrictQuote(true)
			swapper = newSwapper()
			router.quoteErr = errors.New("execution reverted")

			result, err := swapper.SwapNativeToToken(ctx)
			Expect(errors.Is(err, evmswap.ErrQuoteUnavailable)).Should(BeTrue())
			Expect(router.calls).Should(BeEmpty())
			Expect(wallet.sent).Should(BeEmpty())
			Expect(result.AmountIn).ShouldNot(BeNil())
		})

		It("should report a reverted swap", func() {
			wallet.revert = true
			result, err := swapper.SwapNativeToToken(ctx)
			Expect(errors.Is(err, evmswap.ErrReverted)).Should(BeTrue())
			Expect(err.Error()).Should(ContainSubstring("native->token"))
			Expect(result.MinAmountOut).ShouldNot(BeNil())
			Expect(logs.FilterMessage("✅ [Swap]").Len()).Should(Equal(0))
		})

		It("should return the wait error", func() {
			wallet.waitErr = errors.New("connection reset")
			_, err := swapper.SwapNativeToToken(ctx)
			Expect(err).ShouldNot(BeNil())
			Expect(err.Error()).Should(ContainSubstring("connection reset"))
			Expect(wallet.sent).Should(HaveLen(1))
		})

		It("should honour a custom slippage and deadline", func() {
			options = options.WithSlippageBips(100).WithDeadline(time.Minute)
			swapper = newSwapper()

			result, err := swapper.SwapNativeToToken(ctx)
			Expect(err).Should(BeNil())
			quote := new(big.Int).Mul(result.AmountIn, big.NewInt(2))
			expected := new(big.Int).Div(new(big.Int).Mul(quote, big.NewInt(99)), big.NewInt(100))
			Expect(result.MinAmountOut.Cmp(expected)).Should(Equal(0))
			Expect(router.calls[0].deadline.Int64()).Should(Equal(now.Unix() + 60))
		})
	})

	Context("token to native", func() {
		It("should approve the router once before swapping", func() {
			result, err := swapper.SwapTokenToNative(ctx)
			Expect(err).Should(BeNil())
			Expect(result.Approved).Should(BeTrue())
			Expect(token.approvals).Should(HaveLen(1))
			Expect(token.approvals[0].Cmp(math.MaxBig256)).Should(Equal(0))
			Expect(token.spenders[0]).Should(Equal(evmswap.SomniaRouterAddr))
			Expect(wallet.sent).Should(HaveLen(2))
			Expect(wallet.sent[0].Nonce()).Should(Equal(uint64(0)))
			Expect(wallet.sent[1].Nonce()).Should(Equal(uint64(1)))

			call := router.calls[0]
			Expect(call.method).Should(Equal("swapExactTokensForETH"))
			Expect(call.value).Should(BeNil())
			Expect(call.path).Should(Equal([]common.Address{tokenAddr, evmswap.SomniaWrappedNativeAddr}))
			Expect(call.amountIn.Cmp(result.AmountIn)).Should(Equal(0))
			Expect(result.Amount.GreaterThanOrEqual(decimal.RequireFromString("0.04"))).Should(BeTrue())
			Expect(result.Amount.LessThan(decimal.RequireFromString("0.2"))).Should(BeTrue())
			Expect(logs.FilterMessage("✅ [Approve]").Len()).Should(Equal(1))

			By("skipping the approval once the allowance is large enough")
			result, err = swapper.SwapTokenToNative(ctx)
			Expect(err).Should(BeNil())
			Expect(result.Approved).Should(BeFalse())
			Expect(token.approvals).Should(HaveLen(1))
			Expect(router.calls).Should(HaveLen(2))
		})

		It("should use the token decimals", func() {
			token.decimals = 6
			token.allowance = math.MaxBig256
			result, err := swapper.SwapTokenToNative(ctx)
			Expect(err).Should(BeNil())
			Expect(result.AmountIn.Cmp(amount.ToUnits(result.Amount, 6))).Should(Equal(0))
			Expect(wallet.sent).Should(HaveLen(1))
		})

		It("should not swap when the approval fails", func() {
			token.approveErr = errors.New("insufficient funds for gas")
			_, err := swapper.SwapTokenToNative(ctx)
			Expect(err).ShouldNot(BeNil())
			Expect(err.Error()).Should(ContainSubstring("approve"))
			Expect(router.calls).Should(BeEmpty())
			Expect(router.quotes).Should(Equal(0))
		})

		It("should not swap when the decimals cannot be read", func() {
			token.decimalsErr = errors.New("execution reverted")
			_, err := swapper.SwapTokenToNative(ctx)
			Expect(err).ShouldNot(BeNil())
			Expect(router.calls).Should(BeEmpty())
			Expect(wallet.sent).Should(BeEmpty())
		})
	})

	It("should dispatch by direction", func() {
		for i := 0; i < 4; i++ {
			_, err := swapper.Swap(ctx, evmswap.DirectionAt(i))
			Expect(err).Should(BeNil())
		}
		Expect(router.calls).Should(HaveLen(4))
		Expect(router.calls[0].method).Should(Equal("swapExactETHForTokens"))
		Expect(router.calls[1].method).Should(Equal("swapExactTokensForETH"))
		Expect(router.calls[2].method).Should(Equal("swapExactETHForTokens"))
		Expect(router.calls[3].method).Should(Equal("swapExactTokensForETH"))

		_, err := swapper.Swap(ctx, evmswap.Direction(7))
		Expect(err).ShouldNot(BeNil())
	})
})

var _ = Describe("Swapper with a node", func() {
	BeforeEach(func() {
		node.Reset()
	})

	It("should sign and send the swap through the router contract", func() {
		tokenAddr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
		options := evmswap.OptionsSomniaTestnet(tokenAddr)
		key, err := crypto.GenerateKey()
		Expect(err).Should(BeNil())
		wallet, err := evmswap.NewWallet(options, key, client)
		Expect(err).Should(BeNil())
		router, err := bindings.NewRouter(options.RouterAddr, client)
		Expect(err).Should(BeNil())
		token, err := bindings.NewERC20(tokenAddr, client)
		Expect(err).Should(BeNil())
		gen, err := amount.NewGenerator(rand.NewSource(7), 10*time.Second, 20*time.Second)
		Expect(err).Should(BeNil())

		swapper := evmswap.NewSwapper(options, wallet, router, token, gen, zap.NewNop())
		result, err := swapper.SwapNativeToToken(context.Background())
		Expect(err).Should(BeNil())

		sent := node.SentTransactions()
		Expect(sent).Should(HaveLen(1))
		Expect(*sent[0].To()).Should(Equal(options.RouterAddr))
		Expect(sent[0].Value().Cmp(result.AmountIn)).Should(Equal(0))
		Expect(sent[0].Gas()).Should(Equal(uint64(300000)))
		Expect(sent[0].Nonce()).Should(Equal(uint64(7)))
		Expect(result.TxHash).Should(Equal(sent[0].Hash()))
		Expect(result.QuoteUnavailable).Should(BeFalse())
	})
})
