package web3

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// MockBackend implements a simulated chain for testing: a height counter,
// an append-only log store and scripted transaction failures.
type MockBackend struct {
	mu        sync.Mutex
	chainID   *big.Int
	height    uint64
	logs      []ethtypes.Log
	receipts  map[common.Hash]*ethtypes.Receipt
	nonces    map[common.Address]uint64
	failSends int
	sendErr   error
	sent      []*ethtypes.Transaction
}

// NewMockBackend creates a simulated chain at the given height.
func NewMockBackend(chainID, height uint64) *MockBackend {
	return &MockBackend{
		chainID:  new(big.Int).SetUint64(chainID),
		height:   height,
		receipts: make(map[common.Hash]*ethtypes.Receipt),
		nonces:   make(map[common.Address]uint64),
	}
}

// AdvanceBlocks moves the chain head forward.
func (m *MockBackend) AdvanceBlocks(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height += n
}

// AppendLog records a raw log at the given block height.
func (m *MockBackend) AppendLog(l ethtypes.Log) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
}

// FailSends makes the next n SendTransaction calls return err.
func (m *MockBackend) FailSends(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSends = n
	m.sendErr = err
}

// SentTransactions returns every transaction accepted so far.
func (m *MockBackend) SentTransactions() []*ethtypes.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ethtypes.Transaction, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *MockBackend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(m.chainID), nil
}

func (m *MockBackend) BlockNumber(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height, nil
}

func (m *MockBackend) HeaderByNumber(_ context.Context, number *big.Int) (*ethtypes.Header, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.height
	if number != nil {
		n = number.Uint64()
	}
	if n > m.height {
		return nil, fmt.Errorf("block %d not found", n)
	}
	return &ethtypes.Header{Number: new(big.Int).SetUint64(n)}, nil
}

func (m *MockBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ethtypes.Log
	for _, l := range m.logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 {
			if len(l.Topics) == 0 || !containsHash(q.Topics[0], l.Topics[0]) {
				continue
			}
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *MockBackend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nonces[account], nil
}

func (m *MockBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (m *MockBackend) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSends > 0 {
		m.failSends--
		return m.sendErr
	}
	signer := ethtypes.LatestSignerForChainID(m.chainID)
	if from, err := ethtypes.Sender(signer, tx); err == nil {
		m.nonces[from]++
	}
	m.sent = append(m.sent, tx)
	m.height++
	m.receipts[tx.Hash()] = &ethtypes.Receipt{
		Status:      ethtypes.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(m.height),
	}
	return nil
}

func (m *MockBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, h common.Hash) bool {
	for _, x := range list {
		if x == h {
			return true
		}
	}
	return false
}

var mockABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(electionManagerABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

func mockBlockHash(block uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(block))
}

// EmitElectionCreated appends an ElectionCreated log for the contract.
func (m *MockBackend) EmitElectionCreated(contract common.Address, block, id uint64, meta common.Hash) {
	ev := mockABI.Events["ElectionCreated"]
	data, err := ev.Inputs.Pack(new(big.Int).SetUint64(id), [32]byte(meta))
	if err != nil {
		panic(err)
	}
	m.AppendLog(ethtypes.Log{
		Address:     contract,
		BlockNumber: block,
		BlockHash:   mockBlockHash(block),
		Topics:      []common.Hash{ev.ID},
		Data:        data,
	})
}

// EmitVoteCast appends a VoteCast log for the contract.
func (m *MockBackend) EmitVoteCast(contract common.Address, block, id, option uint64, credits *big.Int) {
	ev := mockABI.Events["VoteCast"]
	data, err := ev.Inputs.NonIndexed().Pack(new(big.Int).SetUint64(option), credits)
	if err != nil {
		panic(err)
	}
	m.AppendLog(ethtypes.Log{
		Address:     contract,
		BlockNumber: block,
		BlockHash:   mockBlockHash(block),
		Topics:      []common.Hash{ev.ID, common.BigToHash(new(big.Int).SetUint64(id))},
		Data:        data,
	})
}

// EmitTally appends a Tally log for the contract.
func (m *MockBackend) EmitTally(contract common.Address, block, id uint64, a, b *big.Int) {
	ev := mockABI.Events["Tally"]
	data, err := ev.Inputs.NonIndexed().Pack(a, b)
	if err != nil {
		panic(err)
	}
	m.AppendLog(ethtypes.Log{
		Address:     contract,
		BlockNumber: block,
		BlockHash:   mockBlockHash(block),
		Topics:      []common.Hash{ev.ID, common.BigToHash(new(big.Int).SetUint64(id))},
		Data:        data,
	})
}
