// Package evmtest provides an in-memory JSON-RPC node serving the router and ERC-20 calls the bot makes.
package evmtest

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/catalogfi/autoswap/pkg/swap/evmswap/bindings"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gin-gonic/gin"
)

// NewServer starts an http server answering JSON-RPC requests with node.
func NewServer(node *MockNode) *httptest.Server {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/", node.Handle)
	return httptest.NewServer(router)
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

// MockNode answers the handful of JSON-RPC methods the wallet and the contract bindings use. Contract calls are
// decoded with the binding ABIs and served from in-memory state.
type MockNode struct {
	mu sync.Mutex

	ChainID    *big.Int
	Nonce      uint64
	Balances   map[common.Address]*big.Int
	Decimals   map[common.Address]uint8
	TokenBals  map[common.Address]map[common.Address]*big.Int // token -> owner -> balance
	Allowances map[common.Address]map[common.Address]*big.Int // token -> owner -> allowance
	Rate       int64                                          // each hop multiplies the amount by Rate
	Revert     bool
	Calls      map[string]int

	GasPrice      *big.Int
	ReceiptStatus uint64                 // status of every mined receipt
	NonceTooLow   bool                   // reject the next raw transaction with "nonce too low"
	Sent          []*types.Transaction   // accepted raw transactions, in order
	Receipts      map[common.Hash]uint64 // tx hash -> receipt status
}

func NewMockNode() *MockNode {
	node := &MockNode{}
	node.Reset()
	return node
}

func (node *MockNode) Reset() {
	node.mu.Lock()
	defer node.mu.Unlock()

	node.ChainID = big.NewInt(50312)
	node.Nonce = 7
	node.Balances = map[common.Address]*big.Int{}
	node.Decimals = map[common.Address]uint8{}
	node.TokenBals = map[common.Address]map[common.Address]*big.Int{}
	node.Allowances = map[common.Address]map[common.Address]*big.Int{}
	node.Rate = 2
	node.Revert = false
	node.Calls = map[string]int{}
	node.GasPrice = big.NewInt(1000000000)
	node.ReceiptStatus = types.ReceiptStatusSuccessful
	node.NonceTooLow = false
	node.Sent = nil
	node.Receipts = map[common.Hash]uint64{}
}

func (node *MockNode) SetNonce(nonce uint64) {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.Nonce = nonce
}

func (node *MockNode) SetReceiptStatus(status uint64) {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.ReceiptStatus = status
}

func (node *MockNode) SetNonceTooLow(tooLow bool) {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.NonceTooLow = tooLow
}

// SentTransactions returns the raw transactions accepted so far.
func (node *MockNode) SentTransactions() []*types.Transaction {
	node.mu.Lock()
	defer node.mu.Unlock()
	return append([]*types.Transaction(nil), node.Sent...)
}

func (node *MockNode) SetRevert(revert bool) {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.Revert = revert
}

func (node *MockNode) SetChainID(id int64) {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.ChainID = big.NewInt(id)
}

func (node *MockNode) SetBalance(owner common.Address, balance *big.Int) {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.Balances[owner] = balance
}

func (node *MockNode) SetToken(token common.Address, decimals uint8) {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.Decimals[token] = decimals
}

func (node *MockNode) SetTokenBalance(token, owner common.Address, balance *big.Int) {
	node.mu.Lock()
	defer node.mu.Unlock()
	set(node.TokenBals, token, owner, balance)
}

func (node *MockNode) SetAllowance(token, owner common.Address, allowance *big.Int) {
	node.mu.Lock()
	defer node.mu.Unlock()
	set(node.Allowances, token, owner, allowance)
}

func (node *MockNode) CallCount(method string) int {
	node.mu.Lock()
	defer node.mu.Unlock()
	return node.Calls[method]
}

func (node *MockNode) Handle(c *gin.Context) {
	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	node.mu.Lock()
	defer node.mu.Unlock()
	node.Calls[req.Method]++

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	result, err := node.dispatch(req)
	if err != nil {
		resp.Error = err
	} else {
		resp.Result = result
	}
	c.JSON(http.StatusOK, resp)
}

func (node *MockNode) dispatch(req rpcRequest) (interface{}, *rpcError) {
	switch req.Method {
	case "eth_chainId":
		return (*hexutil.Big)(node.ChainID), nil
	case "eth_getTransactionCount":
		return hexutil.Uint64(node.Nonce), nil
	case "eth_getBalance":
		var addr common.Address
		if len(req.Params) == 0 || json.Unmarshal(req.Params[0], &addr) != nil {
			return nil, &rpcError{Code: -32602, Message: "invalid params"}
		}
		balance, ok := node.Balances[addr]
		if !ok {
			balance = big.NewInt(0)
		}
		return (*hexutil.Big)(balance), nil
	case "eth_gasPrice":
		return (*hexutil.Big)(node.GasPrice), nil
	case "eth_getBlockByNumber":
		return &types.Header{
			Difficulty: big.NewInt(0),
			Number:     big.NewInt(1),
			GasLimit:   30000000,
			Time:       1700000000,
			Extra:      []byte{},
		}, nil
	case "eth_sendRawTransaction":
		return node.sendRaw(req.Params)
	case "eth_getTransactionReceipt":
		var hash common.Hash
		if len(req.Params) == 0 || json.Unmarshal(req.Params[0], &hash) != nil {
			return nil, &rpcError{Code: -32602, Message: "invalid params"}
		}
		status, ok := node.Receipts[hash]
		if !ok {
			return nil, nil
		}
		return &types.Receipt{
			Type:              types.LegacyTxType,
			Status:            status,
			CumulativeGasUsed: 21000,
			GasUsed:           21000,
			Logs:              []*types.Log{},
			TxHash:            hash,
			BlockNumber:       big.NewInt(1),
		}, nil
	case "eth_call":
		if len(req.Params) == 0 {
			return nil, &rpcError{Code: -32602, Message: "invalid params"}
		}
		return node.call(req.Params[0])
	default:
		return nil, &rpcError{Code: -32601, Message: fmt.Sprintf("method %v not found", req.Method)}
	}
}

// sendRaw accepts a signed transaction and mines it at once with the configured receipt status.
func (node *MockNode) sendRaw(params []json.RawMessage) (interface{}, *rpcError) {
	var raw hexutil.Bytes
	if len(params) == 0 || json.Unmarshal(params[0], &raw) != nil {
		return nil, &rpcError{Code: -32602, Message: "invalid params"}
	}
	if node.NonceTooLow {
		node.NonceTooLow = false
		return nil, &rpcError{Code: -32000, Message: "nonce too low"}
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, &rpcError{Code: -32602, Message: err.Error()}
	}
	node.Sent = append(node.Sent, tx)
	node.Receipts[tx.Hash()] = node.ReceiptStatus
	return tx.Hash(), nil
}

func (node *MockNode) call(raw json.RawMessage) (interface{}, *rpcError) {
	var msg struct {
		To    *common.Address `json:"to"`
		Input hexutil.Bytes   `json:"input"`
		Data  hexutil.Bytes   `json:"data"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.To == nil {
		return nil, &rpcError{Code: -32602, Message: "invalid call"}
	}
	input := msg.Input
	if len(input) == 0 {
		input = msg.Data
	}
	if len(input) < 4 {
		return nil, &rpcError{Code: -32602, Message: "missing selector"}
	}
	if node.Revert {
		return nil, &rpcError{Code: 3, Message: "execution reverted"}
	}

	for _, meta := range []*bind.MetaData{bindings.RouterMetaData, bindings.ERC20MetaData} {
		parsed, err := meta.GetAbi()
		if err != nil {
			return nil, &rpcError{Code: -32603, Message: err.Error()}
		}
		method, err := parsed.MethodById(input[:4])
		if err != nil {
			continue
		}
		args, err := method.Inputs.Unpack(input[4:])
		if err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		out, err := node.eval(*msg.To, method.Name, args)
		if err != nil {
			return nil, &rpcError{Code: 3, Message: err.Error()}
		}
		packed, err := method.Outputs.Pack(out...)
		if err != nil {
			return nil, &rpcError{Code: -32603, Message: err.Error()}
		}
		return hexutil.Bytes(packed), nil
	}
	return nil, &rpcError{Code: 3, Message: "execution reverted: unknown selector"}
}

func (node *MockNode) eval(to common.Address, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "getAmountsOut":
		amountIn := args[0].(*big.Int)
		path := args[1].([]common.Address)
		if len(path) < 2 {
			return nil, fmt.Errorf("execution reverted: INVALID_PATH")
		}
		amounts := make([]*big.Int, len(path))
		amounts[0] = new(big.Int).Set(amountIn)
		for i := 1; i < len(path); i++ {
			amounts[i] = new(big.Int).Mul(amounts[i-1], big.NewInt(node.Rate))
		}
		return []interface{}{amounts}, nil
	case "decimals":
		decimals, ok := node.Decimals[to]
		if !ok {
			return nil, fmt.Errorf("execution reverted")
		}
		return []interface{}{decimals}, nil
	case "balanceOf":
		return []interface{}{lookup(node.TokenBals, to, args[0].(common.Address))}, nil
	case "allowance":
		return []interface{}{lookup(node.Allowances, to, args[0].(common.Address))}, nil
	default:
		return nil, fmt.Errorf("execution reverted: %v not supported", method)
	}
}

func lookup(state map[common.Address]map[common.Address]*big.Int, token, owner common.Address) *big.Int {
	if owners, ok := state[token]; ok {
		if value, ok := owners[owner]; ok {
			return new(big.Int).Set(value)
		}
	}
	return big.NewInt(0)
}

func set(state map[common.Address]map[common.Address]*big.Int, token, owner common.Address, value *big.Int) {
	if _, ok := state[token]; !ok {
		state[token] = map[common.Address]*big.Int{}
	}
	state[token][owner] = value
}
