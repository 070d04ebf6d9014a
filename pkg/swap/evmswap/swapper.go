package evmswap

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/catalogfi/autoswap/pkg/amount"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Swapper trades between the native coin and a token through the router. Each call sends exactly one swap, plus an
// approval when the router allowance is too low, and blocks until it is mined. Failed swaps are not retried.
type Swapper struct {
	options    Options
	logger     *zap.Logger
	wallet     Wallet
	router     Router
	token      Token
	amounts    *amount.Generator
	quotes     *QuoteResolver
	allowances *AllowanceManager
	now        func() time.Time
}

func NewSwapper(options Options, wallet Wallet, router Router, token Token, amounts *amount.Generator, logger *zap.Logger) *Swapper {
	return &Swapper{
		options:    options,
		logger:     logger,
		wallet:     wallet,
		router:     router,
		token:      token,
		amounts:    amounts,
		quotes:     NewQuoteResolver(router, options, logger),
		allowances: NewAllowanceManager(wallet, options.RouterAddr, logger),
		now:        time.Now,
	}
}

// Swap dispatches to the swap of the given direction.
func (swapper *Swapper) Swap(ctx context.Context, direction Direction) (Result, error) {
	switch direction {
	case NativeToToken:
		return swapper.SwapNativeToToken(ctx)
	case TokenToNative:
		return swapper.SwapTokenToNative(ctx)
	default:
		return Result{}, fmt.Errorf("unknown direction %v", direction)
	}
}

// SwapNativeToToken sells a random amount of the native coin for the token.
func (swapper *Swapper) SwapNativeToToken(ctx context.Context) (Result, error) {
	human, err := swapper.amounts.Sample(swapper.options.NativeRange)
	if err != nil {
		return Result{}, err
	}
	amountIn := amount.ToUnits(human, NativeDecimals)
	path := NewPath(swapper.options.WrappedNativeAddr, swapper.options.TokenAddr)

	bound, err := swapper.quotes.Bound(ctx, amountIn, path)
	if err != nil {
		return Result{Direction: NativeToToken, Amount: human, AmountIn: amountIn}, fmt.Errorf("swap %v: %w", NativeToToken, err)
	}
	params := swapper.params(amountIn, bound.MinAmountOut, path)
	result := Result{
		Direction:        NativeToToken,
		Amount:           human,
		AmountIn:         amountIn,
		Quote:            bound.Quote,
		MinAmountOut:     bound.MinAmountOut,
		QuoteUnavailable: bound.Unavailable,
	}

	receipt, err := swapper.wallet.Transact(ctx, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		opts.Value = new(big.Int).Set(params.AmountIn)
		opts.GasLimit = swapper.options.GasLimit
		return swapper.router.SwapExactETHForTokens(opts, params.MinAmountOut, params.Path, params.Recipient, params.Deadline)
	})
	if err != nil {
		return result, fmt.Errorf("swap %v: %w", NativeToToken, err)
	}
	result.TxHash = receipt.TxHash

	swapper.logger.Info("✅ [Swap]",
		zap.Stringer("direction", NativeToToken),
		zap.String("amount", human.String()),
		zap.String("min-amount-out", params.MinAmountOut.String()),
		zap.String("tx-hash", receipt.TxHash.Hex()))
	return result, nil
}

// SwapTokenToNative sells a random amount of the token for the native coin, approving the router first if needed.
func (swapper *Swapper) SwapTokenToNative(ctx context.Context) (Result, error) {
	human, err := swapper.amounts.Sample(swapper.options.TokenRange)
	if err != nil {
		return Result{}, err
	}

	amountIn, approved, err := swapper.allowances.EnsureApproval(ctx, swapper.token, human)
	if err != nil {
		return Result{Direction: TokenToNative, Amount: human}, fmt.Errorf("swap %v: %w", TokenToNative, err)
	}
	path := NewPath(swapper.options.TokenAddr, swapper.options.WrappedNativeAddr)

	bound, err := swapper.quotes.Bound(ctx, amountIn, path)
	if err != nil {
		return Result{Direction: TokenToNative, Amount: human, AmountIn: amountIn, Approved: approved}, fmt.Errorf("swap %v: %w", TokenToNative, err)
	}
	params := swapper.params(amountIn, bound.MinAmountOut, path)
	result := Result{
		Direction:        TokenToNative,
		Amount:           human,
		AmountIn:         amountIn,
		Quote:            bound.Quote,
		MinAmountOut:     bound.MinAmountOut,
		QuoteUnavailable: bound.Unavailable,
		Approved:         approved,
	}

	receipt, err := swapper.wallet.Transact(ctx, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		opts.GasLimit = swapper.options.GasLimit
		return swapper.router.SwapExactTokensForETH(opts, params.AmountIn, params.MinAmountOut, params.Path, params.Recipient, params.Deadline)
	})
	if err != nil {
		return result, fmt.Errorf("swap %v: %w", TokenToNative, err)
	}
	result.TxHash = receipt.TxHash

	swapper.logger.Info("✅ [Swap]",
		zap.Stringer("direction", TokenToNative),
		zap.String("amount", human.String()),
		zap.String("min-amount-out", params.MinAmountOut.String()),
		zap.String("tx-hash", receipt.TxHash.Hex()))
	return result, nil
}

func (swapper *Swapper) params(amountIn, minAmountOut *big.Int, path Path) SwapParameters {
	deadline := swapper.now().Add(swapper.options.Deadline).Unix()
	return SwapParameters{
		AmountIn:     amountIn,
		MinAmountOut: minAmountOut,
		Path:         path,
		Recipient:    swapper.wallet.Address(),
		Deadline:     big.NewInt(deadline),
	}
}
