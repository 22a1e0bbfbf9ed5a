// Package chain talks to the EVM network that collects mining fees.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ErrPaymentRejected is wrapped by every reason a fee payment does not count.
var ErrPaymentRejected = errors.New("payment rejected")

// Payment rejection reasons.
var (
	ErrInvalidTxHash     = errors.New("invalid transaction hash")
	ErrTxNotFound        = fmt.Errorf("%w: transaction not found", ErrPaymentRejected)
	ErrTxPending         = fmt.Errorf("%w: transaction pending", ErrPaymentRejected)
	ErrTxFailed          = fmt.Errorf("%w: transaction reverted", ErrPaymentRejected)
	ErrWrongRecipient    = fmt.Errorf("%w: wrong recipient", ErrPaymentRejected)
	ErrWrongSender       = fmt.Errorf("%w: sender is not the bound wallet", ErrPaymentRejected)
	ErrInsufficientValue = fmt.Errorf("%w: value below fee", ErrPaymentRejected)
)

// Payment is the transfer a caller claims to have made.
type Payment struct {
	TxHash   string
	From     string
	To       string
	MinValue *big.Int
}

// Receipt summarises a verified payment.
type Receipt struct {
	TxHash      string   `json:"tx_hash"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Value       *big.Int `json:"value"`
	BlockNumber uint64   `json:"block_number"`
}

// Client wraps an ethclient connection.
type Client struct {
	eth *ethclient.Client
}

// Dial connects to the JSON-RPC endpoint.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	log.Info().Str("endpoint", endpoint).Msg("Connected to chain RPC")
	return &Client{eth: eth}, nil
}

// Close closes the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// ChainID returns the network's chain id.
func (c *Client) ChainID(ctx context.Context) (int64, error) {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain id: %w", err)
	}
	return id.Int64(), nil
}

// Balance returns the native balance of address in wei.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	bal, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return bal, nil
}

// VerifyPayment checks that p.TxHash is a mined, successful transfer of at
// least p.MinValue from p.From to p.To.
func (c *Client) VerifyPayment(ctx context.Context, p Payment) (*Receipt, error) {
	if !IsTxHash(p.TxHash) {
		return nil, ErrInvalidTxHash
	}
	hash := common.HexToHash(p.TxHash)

	tx, pending, err := c.eth.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrTxNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if pending {
		return nil, ErrTxPending
	}

	receipt, err := c.eth.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrTxPending
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender: %w", err)
	}

	obs := observed{status: receipt.Status, from: sender, to: tx.To(), value: tx.Value()}
	if err := checkPayment(obs, p); err != nil {
		return nil, err
	}

	return &Receipt{
		TxHash:      hash.Hex(),
		From:        sender.Hex(),
		To:          tx.To().Hex(),
		Value:       tx.Value(),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

type observed struct {
	status uint64
	from   common.Address
	to     *common.Address
	value  *big.Int
}

func checkPayment(o observed, p Payment) error {
	if o.status != types.ReceiptStatusSuccessful {
		return ErrTxFailed
	}
	if o.to == nil || *o.to != common.HexToAddress(p.To) {
		return ErrWrongRecipient
	}
	if o.from != common.HexToAddress(p.From) {
		return ErrWrongSender
	}
	if p.MinValue != nil && o.value.Cmp(p.MinValue) < 0 {
		return ErrInsufficientValue
	}
	return nil
}

// IsTxHash reports whether s is a 0x-prefixed 32-byte hex string.
func IsTxHash(s string) bool {
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return false
	}
	_, err := hexutil.Decode(s)
	return err == nil
}

// ToWei converts an amount of whole native tokens, e.g. "0.001", to wei.
func ToWei(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", amount)
	}
	return d.Shift(18).BigInt(), nil
}

// FromWei formats wei as whole native tokens.
func FromWei(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -18).String()
}
