package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error
)

func getERC20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

// BalanceOf returns token.balanceOf(owner) at blockNumber (nil for latest).
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address, blockNumber *big.Int) (*big.Int, error) {
	values, err := c.callERC20(ctx, token, "balanceOf", blockNumber, owner)
	if err != nil {
		return nil, err
	}
	return asBigInt("balanceOf", values)
}

// TotalSupply returns token.totalSupply() at blockNumber (nil for latest).
func (c *Client) TotalSupply(ctx context.Context, token common.Address, blockNumber *big.Int) (*big.Int, error) {
	values, err := c.callERC20(ctx, token, "totalSupply", blockNumber)
	if err != nil {
		return nil, err
	}
	return asBigInt("totalSupply", values)
}

// Decimals returns token.decimals().
func (c *Client) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	values, err := c.callERC20(ctx, token, "decimals", nil)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("decimals return size %d", len(values))
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals unexpected type %T", values[0])
	}
	return decimals, nil
}

func (c *Client) callERC20(ctx context.Context, token common.Address, method string, blockNumber *big.Int, args ...interface{}) ([]interface{}, error) {
	parsed, err := getERC20ABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := c.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func asBigInt(method string, values []interface{}) (*big.Int, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s unexpected type %T", method, values[0])
	}
	return v, nil
}
