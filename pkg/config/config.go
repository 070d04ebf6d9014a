package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"strings"

	"github.com/catalogfi/autoswap/pkg/swap/evmswap"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/viper"
)

// DefaultEnvFile is the dotenv file read when no other is given.
const DefaultEnvFile = ".env"

const (
	KeyRPCURL         = "RPC_URL_SOMNIA_TESTNET"
	KeyPrivateKey     = "PRIVATE_KEY"
	KeyUSDTGAddress   = "USDTG_ADDRESS"
	KeyNIAAddress     = "NIA_ADDRESS"
	KeyRouterAddress  = "ROUTER_ADDRESS"
	KeyWSTTAddress    = "WSTT_ADDRESS"
	KeyChainID        = "CHAIN_ID"
	KeyStrictQuote    = "STRICT_QUOTE"
	KeyLogLevel       = "LOG_LEVEL"
	KeySentryDSN      = "SENTRY_DSN"
	KeyDiscordWebhook = "DISCORD_WEBHOOK"
)

var (
	// ErrMissing is returned when a required setting is neither in the environment nor in the env file.
	ErrMissing = errors.New("missing required setting")

	ErrInvalid = errors.New("invalid setting")
)

type Config struct {
	RPCURL     string
	PrivateKey *ecdsa.PrivateKey

	USDTGAddress common.Address
	NIAAddress   *common.Address // optional, only shown by the balances command

	RouterAddress common.Address
	WSTTAddress   common.Address
	ChainID       *big.Int

	StrictQuote    bool
	LogLevel       string
	SentryDSN      string
	DiscordWebhook string
}

// Load reads the settings from the environment, falling back to the dotenv file at path. A missing file is fine,
// environment variables always win over the file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read %v: %w", path, err)
			}
		}
	}
	v.AutomaticEnv()
	v.SetDefault(KeyRouterAddress, evmswap.SomniaRouterAddr.Hex())
	v.SetDefault(KeyWSTTAddress, evmswap.SomniaWrappedNativeAddr.Hex())
	v.SetDefault(KeyChainID, evmswap.SomniaTestnetChainID)

	var cfg Config
	var err error
	if cfg.RPCURL, err = required(v, KeyRPCURL); err != nil {
		return Config{}, err
	}

	keyHex, err := required(v, KeyPrivateKey)
	if err != nil {
		return Config{}, err
	}
	cfg.PrivateKey, err = crypto.HexToECDSA(StripHexPrefix(keyHex))
	if err != nil {
		return Config{}, fmt.Errorf("%w %v: %v", ErrInvalid, KeyPrivateKey, err)
	}

	usdtg, err := required(v, KeyUSDTGAddress)
	if err != nil {
		return Config{}, err
	}
	if cfg.USDTGAddress, err = address(KeyUSDTGAddress, usdtg); err != nil {
		return Config{}, err
	}
	if nia := v.GetString(KeyNIAAddress); nia != "" {
		addr, err := address(KeyNIAAddress, nia)
		if err != nil {
			return Config{}, err
		}
		cfg.NIAAddress = &addr
	}
	if cfg.RouterAddress, err = address(KeyRouterAddress, v.GetString(KeyRouterAddress)); err != nil {
		return Config{}, err
	}
	if cfg.WSTTAddress, err = address(KeyWSTTAddress, v.GetString(KeyWSTTAddress)); err != nil {
		return Config{}, err
	}

	chainID, ok := new(big.Int).SetString(strings.TrimSpace(v.GetString(KeyChainID)), 10)
	if !ok || chainID.Sign() < 0 {
		return Config{}, fmt.Errorf("%w %v: %q", ErrInvalid, KeyChainID, v.GetString(KeyChainID))
	}
	if chainID.Sign() > 0 {
		cfg.ChainID = chainID
	}

	cfg.StrictQuote = v.GetBool(KeyStrictQuote)
	cfg.LogLevel = v.GetString(KeyLogLevel)
	cfg.SentryDSN = v.GetString(KeySentryDSN)
	cfg.DiscordWebhook = v.GetString(KeyDiscordWebhook)
	return cfg, nil
}

// Options returns the swap options for the configured chain and token.
func (cfg Config) Options() evmswap.Options {
	return evmswap.OptionsSomniaTestnet(cfg.USDTGAddress).
		WithChainID(cfg.ChainID).
		WithRouterAddr(cfg.RouterAddress).
		WithWrappedNativeAddr(cfg.WSTTAddress).
		WithStrictQuote(cfg.StrictQuote)
}

func StripHexPrefix(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

func required(v *viper.Viper, key string) (string, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return "", fmt.Errorf("%w: %v", ErrMissing, key)
	}
	return value, nil
}

func address(key, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w %v: %q", ErrInvalid, key, value)
	}
	return common.HexToAddress(value), nil
}
