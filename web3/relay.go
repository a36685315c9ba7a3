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
	"github.com/iden3/go-iden3-crypto/poseidon"

	"github.com/victorrobotxt/toting/log"
	"github.com/victorrobotxt/toting/types"
	"github.com/victorrobotxt/toting/util"
)

// relayABI is the mirror program entrypoint on the secondary chain.
const relayABI = `[
  {"inputs":[
    {"internalType":"uint256","name":"id","type":"uint256"},
    {"internalType":"uint256","name":"a","type":"uint256"},
    {"internalType":"uint256","name":"b","type":"uint256"}],
   "name":"setTally","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const relayGasLimit = 500_000

// DeriveRelayAddress maps the hash of the block that finalized a tally to a
// stable mirror address on the secondary chain: Poseidon over the block hash,
// truncated to the address width. Deterministic, so every relayer lands on
// the same mirror account for the same finalized event.
func DeriveRelayAddress(blockHash common.Hash) (common.Address, error) {
	h, err := poseidon.HashBytes(blockHash.Bytes())
	if err != nil {
		return common.Address{}, fmt.Errorf("derive relay address: %w", err)
	}
	return common.BytesToAddress(h.Bytes()), nil
}

// Relay mirrors finalized tallies onto a secondary chain. Its failures never
// roll back or block the primary submission.
type Relay struct {
	cli     *Client
	abi     abi.ABI
	chainID uint64
	privKey *ecdsa.PrivateKey
	account common.Address
}

// NewRelay binds a relay against an already connected secondary-chain client.
func NewRelay(cli *Client, chainID uint64) (*Relay, error) {
	parsed, err := abi.JSON(strings.NewReader(relayABI))
	if err != nil {
		return nil, fmt.Errorf("parse relay abi: %w", err)
	}
	return &Relay{cli: cli, abi: parsed, chainID: chainID}, nil
}

// SetAccountPrivateKey sets the key used to sign mirror transactions.
func (r *Relay) SetAccountPrivateKey(hexPrivKey string) error {
	key, err := crypto.HexToECDSA(util.TrimHex(hexPrivKey))
	if err != nil {
		return fmt.Errorf("parse relay private key: %w", err)
	}
	r.privKey = key
	r.account = crypto.PubkeyToAddress(key.PublicKey)
	return nil
}

// Mirror pushes one finalized tally to its derived mirror address and waits
// for the receipt. A single attempt; the caller owns the retry policy.
func (r *Relay) Mirror(ctx context.Context, ev *TallyEvent) error {
	if r.privKey == nil {
		return fmt.Errorf("%w: no relay private key set", types.ErrRelayFailure)
	}
	target, err := DeriveRelayAddress(ev.BlockHash)
	if err != nil {
		return fmt.Errorf("%w: %s", types.ErrRelayFailure, err)
	}
	data, err := r.abi.Pack("setTally", new(big.Int).SetUint64(ev.ElectionID), ev.A, ev.B)
	if err != nil {
		return fmt.Errorf("%w: pack setTally: %s", types.ErrRelayFailure, err)
	}
	nonce, err := r.cli.PendingNonceAt(ctx, r.account)
	if err != nil {
		return fmt.Errorf("%w: %s", types.ErrRelayFailure, err)
	}
	gasPrice, err := r.cli.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", types.ErrRelayFailure, err)
	}
	tx := ethtypes.NewTransaction(nonce, target, big.NewInt(0), relayGasLimit, gasPrice, data)
	signer := ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(r.chainID))
	signed, err := ethtypes.SignTx(tx, signer, r.privKey)
	if err != nil {
		return fmt.Errorf("%w: sign setTally: %s", types.ErrRelayFailure, err)
	}
	if err := r.cli.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("%w: %s", types.ErrRelayFailure, err)
	}
	if _, err := r.cli.WaitReceipt(ctx, signed.Hash()); err != nil {
		return fmt.Errorf("%w: %s", types.ErrRelayFailure, err)
	}
	log.Infow("tally mirrored", "election", ev.ElectionID, "target", target.Hex(), "tx", signed.Hash().Hex())
	return nil
}
