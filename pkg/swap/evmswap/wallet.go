package evmswap

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/catalogfi/autoswap/pkg/swap/evmswap/bindings"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

type wallet struct {
	key     *ecdsa.PrivateKey
	client  *ethclient.Client
	chainID *big.Int

	mu    *sync.Mutex
	addr  common.Address
	nonce uint64
}

func NewWallet(options Options, key *ecdsa.PrivateKey, client *ethclient.Client) (Wallet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr := crypto.PubkeyToAddress(key.PublicKey)

	// Make sure the chain ID matches our expectation, so we know we are on the right chain.
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	if options.ChainID != nil && options.ChainID.Cmp(chainID) != 0 {
		return nil, fmt.Errorf("wrong chain ID, expect %v, got %v", options.ChainID, chainID)
	}

	wal := &wallet{
		key:     key,
		client:  client,
		chainID: chainID,

		mu:   new(sync.Mutex),
		addr: addr,
	}

	// Get the pending nonce, and we'll manually manage the nonce with the wallet.
	wal.nonce, err = client.PendingNonceAt(ctx, addr)
	if err != nil {
		return nil, err
	}
	return wal, nil
}

func (wallet *wallet) Address() common.Address {
	return wallet.addr
}

func (wallet *wallet) Balance(ctx context.Context, tokenAddr *common.Address, pending bool) (*big.Int, error) {
	if tokenAddr == nil {
		if pending {
			return wallet.client.PendingBalanceAt(ctx, wallet.addr)
		}
		return wallet.client.BalanceAt(ctx, wallet.addr, nil)
	}

	erc20, err := bindings.NewERC20(*tokenAddr, wallet.client)
	if err != nil {
		return nil, err
	}
	callOpts := &bind.CallOpts{
		Pending: pending,
		Context: ctx,
	}
	return erc20.BalanceOf(callOpts, wallet.addr)
}

func (wallet *wallet) Transact(ctx context.Context, send SendFunc) (*types.Receipt, error) {
	tx, err := wallet.send(ctx, send)
	if err != nil {
		return nil, err
	}

	receipt, err := bind.WaitMined(ctx, wallet.client, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for tx %v: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("%w, hash = %v", ErrReverted, receipt.TxHash.Hex())
	}
	return receipt, nil
}

func (wallet *wallet) send(ctx context.Context, send SendFunc) (*types.Transaction, error) {
	wallet.mu.Lock()
	defer wallet.mu.Unlock()

	transactor, err := wallet.transactor(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := send(transactor)
	if err != nil {
		if strings.Contains(err.Error(), "nonce too low") {
			if inErr := wallet.calibrateNonce(); inErr != nil {
				return nil, fmt.Errorf("send failed = %v, reset nonce failed = %v", err, inErr)
			}
		}
		return nil, err
	}
	wallet.nonce++
	return tx, nil
}

func (wallet *wallet) calibrateNonce() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	nonce, err := wallet.client.PendingNonceAt(ctx, wallet.addr)
	if err != nil {
		return err
	}
	wallet.nonce = nonce
	return nil
}

func (wallet *wallet) transactor(ctx context.Context) (*bind.TransactOpts, error) {
	transactor, err := bind.NewKeyedTransactorWithChainID(wallet.key, wallet.chainID)
	if err != nil {
		return nil, err
	}
	transactor.Nonce = new(big.Int).SetUint64(wallet.nonce)
	transactor.Context = ctx
	return transactor, nil
}
