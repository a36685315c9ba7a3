package web3

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/victorrobotxt/toting/log"
	"github.com/victorrobotxt/toting/types"
	"github.com/victorrobotxt/toting/util"
)

// electionManagerABI is the minimal contract surface the orchestrator needs:
// the lifecycle events and the tally submission entrypoint.
const electionManagerABI = `[
  {"anonymous":false,"inputs":[
    {"indexed":false,"internalType":"uint256","name":"id","type":"uint256"},
    {"indexed":false,"internalType":"bytes32","name":"meta","type":"bytes32"}],
   "name":"ElectionCreated","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"uint256","name":"id","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"option","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"credits","type":"uint256"}],
   "name":"VoteCast","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"uint256","name":"id","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"A","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"B","type":"uint256"}],
   "name":"Tally","type":"event"},
  {"inputs":[
    {"internalType":"uint256","name":"id","type":"uint256"},
    {"internalType":"uint256[2]","name":"a","type":"uint256[2]"},
    {"internalType":"uint256[2][2]","name":"b","type":"uint256[2][2]"},
    {"internalType":"uint256[2]","name":"c","type":"uint256[2]"},
    {"internalType":"uint256[7]","name":"pubSignals","type":"uint256[7]"}],
   "name":"tallyVotes","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[
    {"internalType":"bytes32","name":"meta","type":"bytes32"}],
   "name":"createElection","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const tallyGasLimit = 4_000_000

// ElectionCreatedEvent is a decoded lifecycle-creation log.
type ElectionCreatedEvent struct {
	ID       uint64
	MetaHash common.Hash
	Block    uint64
}

// VoteCastEvent is a decoded ballot log.
type VoteCastEvent struct {
	ElectionID uint64
	Option     uint64
	Credits    *big.Int
	Block      uint64
}

// TallyEvent is a decoded final-result log.
type TallyEvent struct {
	ElectionID uint64
	A, B       *big.Int
	Block      uint64
	BlockHash  common.Hash
	TxHash     common.Hash
}

// Manager drives the election manager contract: event scanning plus signed
// tally submission.
type Manager struct {
	cli     *Client
	address common.Address
	abi     abi.ABI
	chainID uint64
	privKey *ecdsa.PrivateKey
	account common.Address
}

// NewManager binds the contract at the given address.
func NewManager(cli *Client, address common.Address, chainID uint64) (*Manager, error) {
	parsed, err := abi.JSON(strings.NewReader(electionManagerABI))
	if err != nil {
		return nil, fmt.Errorf("parse election manager abi: %w", err)
	}
	return &Manager{cli: cli, address: address, abi: parsed, chainID: chainID}, nil
}

// SetAccountPrivateKey sets the key used to sign submission transactions.
func (m *Manager) SetAccountPrivateKey(hexPrivKey string) error {
	key, err := crypto.HexToECDSA(util.TrimHex(hexPrivKey))
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}
	m.privKey = key
	m.account = crypto.PubkeyToAddress(key.PublicKey)
	return nil
}

// AccountAddress returns the submission account address.
func (m *Manager) AccountAddress() common.Address { return m.account }

// Address returns the bound contract address.
func (m *Manager) Address() common.Address { return m.address }

// CreatedElections scans [from, to] for ElectionCreated events.
func (m *Manager) CreatedElections(ctx context.Context, from, to uint64) ([]*ElectionCreatedEvent, error) {
	ev := m.abi.Events["ElectionCreated"]
	logs, err := m.cli.FilterLogs(ctx, m.address, ev.ID, from, to)
	if err != nil {
		return nil, err
	}
	events := make([]*ElectionCreatedEvent, 0, len(logs))
	for _, l := range logs {
		vals, err := ev.Inputs.Unpack(l.Data)
		if err != nil {
			log.Warnw("skipping undecodable log", "event", "ElectionCreated", "block", l.BlockNumber)
			continue
		}
		events = append(events, &ElectionCreatedEvent{
			ID:       vals[0].(*big.Int).Uint64(),
			MetaHash: common.Hash(vals[1].([32]byte)),
			Block:    l.BlockNumber,
		})
	}
	return events, nil
}

// VoteEvents scans [from, to] for VoteCast events of one election.
func (m *Manager) VoteEvents(ctx context.Context, electionID, from, to uint64) ([]*VoteCastEvent, error) {
	ev := m.abi.Events["VoteCast"]
	logs, err := m.cli.FilterLogs(ctx, m.address, ev.ID, from, to)
	if err != nil {
		return nil, err
	}
	want := new(big.Int).SetUint64(electionID)
	events := make([]*VoteCastEvent, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 2 || l.Topics[1].Big().Cmp(want) != 0 {
			continue
		}
		vals, err := ev.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil {
			log.Warnw("skipping undecodable log", "event", "VoteCast", "block", l.BlockNumber)
			continue
		}
		events = append(events, &VoteCastEvent{
			ElectionID: electionID,
			Option:     vals[0].(*big.Int).Uint64(),
			Credits:    vals[1].(*big.Int),
			Block:      l.BlockNumber,
		})
	}
	return events, nil
}

// TallyEvents scans [from, to] for finalized Tally events.
func (m *Manager) TallyEvents(ctx context.Context, from, to uint64) ([]*TallyEvent, error) {
	ev := m.abi.Events["Tally"]
	logs, err := m.cli.FilterLogs(ctx, m.address, ev.ID, from, to)
	if err != nil {
		return nil, err
	}
	events := make([]*TallyEvent, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 2 {
			continue
		}
		vals, err := ev.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil {
			log.Warnw("skipping undecodable log", "event", "Tally", "block", l.BlockNumber)
			continue
		}
		events = append(events, &TallyEvent{
			ElectionID: l.Topics[1].Big().Uint64(),
			A:          vals[0].(*big.Int),
			B:          vals[1].(*big.Int),
			Block:      l.BlockNumber,
			BlockHash:  l.BlockHash,
			TxHash:     l.TxHash,
		})
	}
	return events, nil
}

// SubmitTally packs, signs and broadcasts the tallyVotes transaction, then
// waits for its receipt. Returns the transaction hash on success.
func (m *Manager) SubmitTally(ctx context.Context, electionID uint64,
	result *types.ProofResult,
) (common.Hash, error) {
	if m.privKey == nil {
		return common.Hash{}, fmt.Errorf("no private key set")
	}
	a, b, cPoints, err := groth16Calldata(result)
	if err != nil {
		return common.Hash{}, err
	}
	pub, err := pubSignalsCalldata(result.PubSignals)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := m.abi.Pack("tallyVotes", new(big.Int).SetUint64(electionID), a, b, cPoints, pub)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack tallyVotes: %w", err)
	}
	nonce, err := m.cli.PendingNonceAt(ctx, m.account)
	if err != nil {
		return common.Hash{}, err
	}
	gasPrice, err := m.cli.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	tx := ethtypes.NewTransaction(nonce, m.address, big.NewInt(0), tallyGasLimit, gasPrice, data)
	signer := ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(m.chainID))
	signed, err := ethtypes.SignTx(tx, signer, m.privKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tallyVotes: %w", err)
	}
	if err := m.cli.SendTransaction(ctx, signed); err != nil {
		return signed.Hash(), fmt.Errorf("%w: %s", types.ErrSubmissionFailed, err)
	}
	log.Infow("tally transaction sent", "tx", signed.Hash().Hex(), "election", electionID)
	if _, err := m.cli.WaitReceipt(ctx, signed.Hash()); err != nil {
		return signed.Hash(), err
	}
	return signed.Hash(), nil
}

// groth16Calldata converts a structured proof payload into the fixed-size
// arrays the verifier expects.
func groth16Calldata(result *types.ProofResult) ([2]*big.Int, [2][2]*big.Int, [2]*big.Int, error) {
	var a, c [2]*big.Int
	var b [2][2]*big.Int
	if result.Proof.Class != types.PayloadGroth16 || result.Proof.Structured == nil {
		return a, b, c, fmt.Errorf("%w: tally proof is not groth16 shaped", types.ErrSubmissionFailed)
	}
	points := result.Proof.Structured
	for i := 0; i < 2; i++ {
		var ok bool
		if a[i], ok = new(big.Int).SetString(points.A[i], 10); !ok {
			return a, b, c, fmt.Errorf("%w: bad proof point a[%d]", types.ErrSubmissionFailed, i)
		}
		if c[i], ok = new(big.Int).SetString(points.C[i], 10); !ok {
			return a, b, c, fmt.Errorf("%w: bad proof point c[%d]", types.ErrSubmissionFailed, i)
		}
		for j := 0; j < 2; j++ {
			if b[i][j], ok = new(big.Int).SetString(points.B[i][j], 10); !ok {
				return a, b, c, fmt.Errorf("%w: bad proof point b[%d][%d]", types.ErrSubmissionFailed, i, j)
			}
		}
	}
	return a, b, c, nil
}

// pubSignalsCalldata pads or rejects the public signals into the uint256[7]
// slot layout.
func pubSignalsCalldata(signals []string) ([7]*big.Int, error) {
	var pub [7]*big.Int
	if len(signals) > len(pub) {
		return pub, fmt.Errorf("%w: %d public signals, at most %d supported",
			types.ErrSubmissionFailed, len(signals), len(pub))
	}
	for i := range pub {
		pub[i] = big.NewInt(0)
	}
	for i, s := range signals {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return pub, fmt.Errorf("%w: bad public signal %q", types.ErrSubmissionFailed, s)
		}
		pub[i] = v
	}
	return pub, nil
}
