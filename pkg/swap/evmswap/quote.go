package evmswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"go.uber.org/zap"
)

const maxBips = 10000

// Bound is the minimum output accepted for a swap and the quote it was derived from.
type Bound struct {
	Quote        *big.Int
	MinAmountOut *big.Int
	Unavailable  bool
}

// QuoteResolver prices swaps with the router's getAmountsOut.
type QuoteResolver struct {
	router       Router
	logger       *zap.Logger
	slippageBips uint64
	strict       bool
}

func NewQuoteResolver(router Router, options Options, logger *zap.Logger) *QuoteResolver {
	return &QuoteResolver{
		router:       router,
		logger:       logger,
		slippageBips: options.SlippageBips,
		strict:       options.StrictQuote,
	}
}

// AmountOut returns the amount of the last token in path the router would give for amountIn.
func (resolver *QuoteResolver) AmountOut(ctx context.Context, amountIn *big.Int, path Path) (*big.Int, error) {
	amounts, err := resolver.router.GetAmountsOut(&bind.CallOpts{Context: ctx}, amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	if len(amounts) == 0 || amounts[len(amounts)-1] == nil {
		return nil, fmt.Errorf("%w: empty amounts", ErrQuoteUnavailable)
	}
	return amounts[len(amounts)-1], nil
}

// Bound quotes amountIn and applies the slippage discount. When the router cannot quote, the error is logged and the
// bound falls back to zero, unless the resolver is strict, in which case the error is returned.
func (resolver *QuoteResolver) Bound(ctx context.Context, amountIn *big.Int, path Path) (Bound, error) {
	quote, err := resolver.AmountOut(ctx, amountIn, path)
	if err != nil {
		if resolver.strict {
			return Bound{}, err
		}
		resolver.logger.Error("get amounts out", zap.Error(err), zap.String("amount-in", amountIn.String()))
		return Bound{
			Quote:        big.NewInt(0),
			MinAmountOut: big.NewInt(0),
			Unavailable:  true,
		}, nil
	}
	return Bound{
		Quote:        quote,
		MinAmountOut: SlippageBound(quote, resolver.slippageBips),
	}, nil
}

// SlippageBound returns floor(quote * (10000 - bips) / 10000).
func SlippageBound(quote *big.Int, bips uint64) *big.Int {
	if quote == nil || quote.Sign() <= 0 || bips >= maxBips {
		return big.NewInt(0)
	}
	bound := new(big.Int).Mul(quote, new(big.Int).SetUint64(maxBips-bips))
	return bound.Div(bound, big.NewInt(maxBips))
}
