package evmswap

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

var (
	// ErrQuoteUnavailable is returned when the router cannot price a swap.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrReverted is returned when a transaction is mined with a failed status.
	ErrReverted = errors.New("tx reverted")
)

// Direction of a swap.
type Direction uint8

const (
	NativeToToken Direction = iota
	TokenToNative
)

// DirectionAt returns the direction of the i-th iteration of the swap cycle: even iterations sell the native coin,
// odd ones buy it back.
func DirectionAt(i int) Direction {
	if i%2 == 0 {
		return NativeToToken
	}
	return TokenToNative
}

func (d Direction) String() string {
	switch d {
	case NativeToToken:
		return "native->token"
	case TokenToNative:
		return "token->native"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Path is the route of a swap, source token first. The bot only swaps directly between two tokens.
type Path []common.Address

func NewPath(from, to common.Address) Path {
	return Path{from, to}
}

// SwapParameters are the arguments of a single router call.
type SwapParameters struct {
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Path         Path
	Recipient    common.Address
	Deadline     *big.Int
}

// Result describes an executed swap.
type Result struct {
	Direction        Direction
	Amount           decimal.Decimal // human amount sold
	AmountIn         *big.Int        // base units sold
	Quote            *big.Int
	MinAmountOut     *big.Int
	QuoteUnavailable bool
	Approved         bool // an approval transaction was sent before the swap
	TxHash           common.Hash
}

// Router is the part of the router contract used by the bot.
type Router interface {
	GetAmountsOut(opts *bind.CallOpts, amountIn *big.Int, path []common.Address) ([]*big.Int, error)

	SwapExactETHForTokens(opts *bind.TransactOpts, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) (*types.Transaction, error)

	SwapExactTokensForETH(opts *bind.TransactOpts, amountIn *big.Int, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) (*types.Transaction, error)
}

// Token is the part of an ERC-20 contract used by the bot.
type Token interface {
	Decimals(opts *bind.CallOpts) (uint8, error)

	BalanceOf(opts *bind.CallOpts, owner common.Address) (*big.Int, error)

	Allowance(opts *bind.CallOpts, owner common.Address, spender common.Address) (*big.Int, error)

	Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error)
}

// SendFunc submits a transaction with the given transactor.
type SendFunc func(opts *bind.TransactOpts) (*types.Transaction, error)

type Wallet interface {

	// Address returns the address of the wallet
	Address() common.Address

	// Balance returns the balance of the wallet address, in the native coin when tokenAddr is nil and in the ERC-20
	// token otherwise.
	Balance(ctx context.Context, tokenAddr *common.Address, pending bool) (*big.Int, error)

	// Transact signs and submits the transaction built by send, then waits for it to be mined. A reverted
	// transaction is reported as ErrReverted.
	Transact(ctx context.Context, send SendFunc) (*types.Receipt, error)
}
