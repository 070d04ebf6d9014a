package evmswap

import (
	"math/big"
	"time"

	"github.com/catalogfi/autoswap/pkg/amount"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// SomniaTestnetChainID is the chain ID of the Somnia testnet (Shannon).
	SomniaTestnetChainID = 50312

	// NativeDecimals is the precision of the chain's native coin.
	NativeDecimals = 18
)

var (
	SomniaRouterAddr        = common.HexToAddress("0xb98c15a0dC1e271132e341250703c7e94c059e8D")
	SomniaWrappedNativeAddr = common.HexToAddress("0xf22ef0085f6511f70b01a68f360dcc56261f768a")
)

type Options struct {
	// ChainID the wallet expects the node to report, nil accepts whatever the node says.
	ChainID *big.Int

	RouterAddr        common.Address
	WrappedNativeAddr common.Address
	TokenAddr         common.Address

	NativeRange amount.Range // human amount of native coin sold per native-to-token swap
	TokenRange  amount.Range // human amount of token sold per token-to-native swap

	GasLimit     uint64
	SlippageBips uint64        // discount applied to the quote, in basis points
	Deadline     time.Duration // validity window of a swap transaction

	// StrictQuote aborts a swap when no quote is available instead of sending it without a minimum output.
	StrictQuote bool
}

func OptionsSomniaTestnet(tokenAddr common.Address) Options {
	return Options{
		ChainID:           big.NewInt(SomniaTestnetChainID),
		RouterAddr:        SomniaRouterAddr,
		WrappedNativeAddr: SomniaWrappedNativeAddr,
		TokenAddr:         tokenAddr,
		NativeRange:       amount.NewRange("0.01", "0.05"),
		TokenRange:        amount.NewRange("0.04", "0.2"),
		GasLimit:          300000,
		SlippageBips:      500,
		Deadline:          10 * time.Minute,
	}
}

func (opts Options) WithChainID(id *big.Int) Options {
	opts.ChainID = id
	return opts
}

func (opts Options) WithRouterAddr(addr common.Address) Options {
	opts.RouterAddr = addr
	return opts
}

func (opts Options) WithWrappedNativeAddr(addr common.Address) Options {
	opts.WrappedNativeAddr = addr
	return opts
}

func (opts Options) WithTokenAddr(addr common.Address) Options {
	opts.TokenAddr = addr
	return opts
}

func (opts Options) WithNativeRange(r amount.Range) Options {
	opts.NativeRange = r
	return opts
}

func (opts Options) WithTokenRange(r amount.Range) Options {
	opts.TokenRange = r
	return opts
}

func (opts Options) WithGasLimit(limit uint64) Options {
	opts.GasLimit = limit
	return opts
}

func (opts Options) WithSlippageBips(bips uint64) Options {
	opts.SlippageBips = bips
	return opts
}

func (opts Options) WithDeadline(window time.Duration) Options {
	opts.Deadline = window
	return opts
}

func (opts Options) WithStrictQuote(strict bool) Options {
	opts.StrictQuote = strict
	return opts
}
