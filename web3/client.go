// Package web3 is the chain access layer: a retrying ethclient wrapper, the
// election manager contract bindings, and the cross-chain relay leg.
package web3

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/victorrobotxt/toting/log"
	"github.com/victorrobotxt/toting/types"
)

const (
	queryTimeout   = 10 * time.Second
	receiptPoll    = 2 * time.Second
	receiptTimeout = 2 * time.Minute
	maxBackoff     = 30 * time.Second
)

// EthBackend is the subset of the ethclient API the orchestrator touches.
// *ethclient.Client satisfies it; tests plug in a simulated chain.
type EthBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// Client wraps an EthBackend with per-call timeouts and transient-error
// retries. All methods block until success, a fatal error, or context
// cancellation.
type Client struct {
	backend EthBackend
}

// NewClient wraps an existing backend.
func NewClient(backend EthBackend) *Client {
	return &Client{backend: backend}
}

// Dial connects to the endpoint, retrying the liveness check with
// exponential backoff until the context is cancelled or maxRetries
// consecutive attempts fail. maxRetries <= 0 retries forever.
func Dial(ctx context.Context, rpcURL string, maxRetries int) (*Client, error) {
	var cli *ethclient.Client
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = maxBackoff
	bo.MaxElapsedTime = 0
	var b backoff.BackOff = backoff.WithContext(bo, ctx)
	if maxRetries > 0 {
		b = backoff.WithMaxRetries(b, uint64(maxRetries))
	}
	err := backoff.Retry(func() error {
		var err error
		cli, err = ethclient.DialContext(ctx, rpcURL)
		if err != nil {
			log.Warnw("chain endpoint unreachable, retrying", "url", rpcURL, "err", err.Error())
			return err
		}
		ctxQuery, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()
		if _, err := cli.BlockNumber(ctxQuery); err != nil {
			log.Warnw("chain liveness check failed, retrying", "url", rpcURL, "err", err.Error())
			return err
		}
		return nil
	}, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", types.ErrChainUnavailable, rpcURL, err)
	}
	return &Client{backend: cli}, nil
}

// fatalFragments mark errors that retrying cannot fix.
var fatalFragments = []string{
	"execution reverted",
	"nonce too low",
	"insufficient funds",
	"replacement transaction underpriced",
	"invalid sender",
	"gas required exceeds allowance",
}

// isTransient classifies a chain error. Fatal errors abort the retry loop
// immediately; everything else (connectivity, rate limits, timeouts) is
// retried with backoff.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range fatalFragments {
		if strings.Contains(msg, frag) {
			return false
		}
	}
	return true
}

// retry runs fn with per-attempt timeouts and exponential backoff, stopping
// on fatal errors.
func (c *Client) retry(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = maxBackoff
	bo.MaxElapsedTime = 2 * time.Minute
	return backoff.Retry(func() error {
		ctxCall, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()
		err := fn(ctxCall)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		log.Warnw("chain call failed, retrying", "call", name, "err", err.Error())
		return err
	}, backoff.WithContext(bo, ctx))
}

// ChainID returns the chain id of the connected endpoint.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var id *big.Int
	err := c.retry(ctx, "chainId", func(ctx context.Context) error {
		var err error
		id, err = c.backend.ChainID(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s", types.ErrChainUnavailable, err)
	}
	return id.Uint64(), nil
}

// BlockNumber returns the current chain height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.retry(ctx, "blockNumber", func(ctx context.Context) error {
		var err error
		n, err = c.backend.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s", types.ErrChainUnavailable, err)
	}
	return n, nil
}

// BlockHash returns the hash of the block at the given height.
func (c *Client) BlockHash(ctx context.Context, number uint64) (common.Hash, error) {
	var h common.Hash
	err := c.retry(ctx, "headerByNumber", func(ctx context.Context) error {
		header, err := c.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return err
		}
		h = header.Hash()
		return nil
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s", types.ErrChainUnavailable, err)
	}
	return h, nil
}

// FilterLogs queries raw logs for one contract and topic over a block range.
func (c *Client) FilterLogs(ctx context.Context, address common.Address,
	topic common.Hash, from, to uint64,
) ([]ethtypes.Log, error) {
	q := ethereum.FilterQuery{
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{{topic}},
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
	}
	var logs []ethtypes.Log
	err := c.retry(ctx, "filterLogs", func(ctx context.Context) error {
		var err error
		logs, err = c.backend.FilterLogs(ctx, q)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrChainUnavailable, err)
	}
	return logs, nil
}

// PendingNonceAt returns the next nonce for the account.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var nonce uint64
	err := c.retry(ctx, "pendingNonce", func(ctx context.Context) error {
		var err error
		nonce, err = c.backend.PendingNonceAt(ctx, account)
		return err
	})
	return nonce, err
}

// SuggestGasPrice returns the suggested gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.retry(ctx, "gasPrice", func(ctx context.Context) error {
		var err error
		price, err = c.backend.SuggestGasPrice(ctx)
		return err
	})
	return price, err
}

// SendTransaction broadcasts a signed transaction. Not retried internally:
// resending a transaction is the caller's decision.
func (c *Client) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	ctxCall, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return c.backend.SendTransaction(ctxCall, tx)
}

// WaitReceipt polls for the receipt of a transaction until it lands or the
// wait times out. A reverted receipt is returned with ErrSubmissionFailed.
func (c *Client) WaitReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()
	ticker := time.NewTicker(receiptPoll)
	defer ticker.Stop()
	for {
		ctxCall, cancelCall := context.WithTimeout(ctx, queryTimeout)
		receipt, err := c.backend.TransactionReceipt(ctxCall, txHash)
		cancelCall()
		if err == nil && receipt != nil {
			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: transaction %s reverted",
					types.ErrSubmissionFailed, txHash.Hex())
			}
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for receipt %s: %s",
				types.ErrChainUnavailable, txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
