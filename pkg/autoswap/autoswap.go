package autoswap

import (
	"context"
	"fmt"
	"io"

	"github.com/catalogfi/autoswap/pkg/amount"
	"github.com/catalogfi/autoswap/pkg/config"
	"github.com/catalogfi/autoswap/pkg/cycle"
	"github.com/catalogfi/autoswap/pkg/notify"
	"github.com/catalogfi/autoswap/pkg/swap/evmswap"
	"github.com/catalogfi/autoswap/pkg/swap/evmswap/bindings"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jedib0t/go-pretty/table"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Bot holds everything a run needs, built from the configuration.
type Bot struct {
	cfg     config.Config
	client  *ethclient.Client
	wallet  evmswap.Wallet
	swapper *evmswap.Swapper
	runner  *cycle.Runner
	logger  *zap.Logger
}

func New(cfg config.Config, logger *zap.Logger) (*Bot, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %v: %w", cfg.RPCURL, err)
	}
	bot, err := NewWithClient(cfg, client, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	return bot, nil
}

// NewWithClient wires the bot on top of an existing client.
func NewWithClient(cfg config.Config, client *ethclient.Client, logger *zap.Logger) (*Bot, error) {
	options := cfg.Options()
	wallet, err := evmswap.NewWallet(options, cfg.PrivateKey, client)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	router, err := bindings.NewRouter(options.RouterAddr, client)
	if err != nil {
		return nil, err
	}
	token, err := bindings.NewERC20(options.TokenAddr, client)
	if err != nil {
		return nil, err
	}

	var notifier cycle.Notifier = notify.Nop{}
	if cfg.DiscordWebhook != "" {
		if notifier, err = notify.NewDiscord(cfg.DiscordWebhook); err != nil {
			return nil, err
		}
	}

	amounts := amount.Default()
	swapper := evmswap.NewSwapper(options, wallet, router, token, amounts, logger.With(zap.String("service", "swapper")))
	runner := cycle.NewRunner(swapper, amounts, notifier, logger.With(zap.String("service", "cycle")))

	logger.Info("wallet loaded",
		zap.String("address", wallet.Address().Hex()),
		zap.String("router", options.RouterAddr.Hex()),
		zap.String("token", options.TokenAddr.Hex()))
	return &Bot{
		cfg:     cfg,
		client:  client,
		wallet:  wallet,
		swapper: swapper,
		runner:  runner,
		logger:  logger,
	}, nil
}

func (bot *Bot) Address() common.Address {
	return bot.wallet.Address()
}

// Run performs n swap iterations.
func (bot *Bot) Run(ctx context.Context, n int) (cycle.Summary, error) {
	return bot.runner.Run(ctx, n)
}

// Balance is the holding of one asset, in human units.
type Balance struct {
	Asset   string
	Address *common.Address // nil for the native coin
	Amount  decimal.Decimal
}

// Balances reads the native coin, USDTg and, when configured, NIA balances of the wallet.
func (bot *Bot) Balances(ctx context.Context) ([]Balance, error) {
	native, err := bot.wallet.Balance(ctx, nil, false)
	if err != nil {
		return nil, fmt.Errorf("get native balance: %w", err)
	}
	balances := []Balance{{Asset: "STT", Amount: amount.FromUnits(native, evmswap.NativeDecimals)}}

	tokens := []struct {
		asset string
		addr  *common.Address
	}{
		{"USDTg", &bot.cfg.USDTGAddress},
		{"NIA", bot.cfg.NIAAddress},
	}
	for _, token := range tokens {
		if token.addr == nil {
			continue
		}
		balance, err := bot.tokenBalance(ctx, *token.addr)
		if err != nil {
			return nil, fmt.Errorf("get %v balance: %w", token.asset, err)
		}
		balances = append(balances, Balance{Asset: token.asset, Address: token.addr, Amount: balance})
	}
	return balances, nil
}

func (bot *Bot) tokenBalance(ctx context.Context, addr common.Address) (decimal.Decimal, error) {
	erc20, err := bindings.NewERC20(addr, bot.client)
	if err != nil {
		return decimal.Zero, err
	}
	decimals, err := erc20.Decimals(&bind.CallOpts{Context: ctx})
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := bot.wallet.Balance(ctx, &addr, false)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.FromUnits(balance, decimals), nil
}

func (bot *Bot) Close() {
	bot.client.Close()
}

// RenderBalances writes the balances to w as a table.
func RenderBalances(w io.Writer, owner common.Address, balances []Balance) {
	fmt.Fprintf(w, "Wallet %v\n", owner.Hex())
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Asset", "Contract", "Balance"})
	for _, balance := range balances {
		contract := "native"
		if balance.Address != nil {
			contract = balance.Address.Hex()
		}
		t.AppendRow(table.Row{balance.Asset, contract, balance.Amount.String()})
	}
	t.Render()
}
