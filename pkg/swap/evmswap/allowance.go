package evmswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/catalogfi/autoswap/pkg/amount"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AllowanceManager keeps the spender allowed to move the wallet's tokens.
type AllowanceManager struct {
	wallet  Wallet
	spender common.Address
	logger  *zap.Logger
}

func NewAllowanceManager(wallet Wallet, spender common.Address, logger *zap.Logger) *AllowanceManager {
	return &AllowanceManager{
		wallet:  wallet,
		spender: spender,
		logger:  logger,
	}
}

// EnsureApproval converts humanAmount into base units of token and makes sure the spender may transfer that much. If
// the current allowance is lower, it approves the max uint256 and waits for the approval to be mined. It returns the
// amount in base units and whether an approval was sent.
func (manager *AllowanceManager) EnsureApproval(ctx context.Context, token Token, humanAmount decimal.Decimal) (*big.Int, bool, error) {
	callOpts := &bind.CallOpts{Context: ctx}
	decimals, err := token.Decimals(callOpts)
	if err != nil {
		return nil, false, fmt.Errorf("get decimals: %w", err)
	}
	amountIn := amount.ToUnits(humanAmount, decimals)

	allowance, err := token.Allowance(callOpts, manager.wallet.Address(), manager.spender)
	if err != nil {
		return nil, false, fmt.Errorf("get allowance: %w", err)
	}
	if allowance.Cmp(amountIn) >= 0 {
		return amountIn, false, nil
	}

	receipt, err := manager.wallet.Transact(ctx, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return token.Approve(opts, manager.spender, new(big.Int).Set(math.MaxBig256))
	})
	if err != nil {
		return nil, false, fmt.Errorf("approve: %w", err)
	}
	manager.logger.Info("✅ [Approve]", zap.String("spender", manager.spender.Hex()), zap.String("tx-hash", receipt.TxHash.Hex()))
	return amountIn, true, nil
}
