package storage

import (
	"encoding/binary"
	"fmt"

	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/victorrobotxt/toting/types"
)

func electionKey(id uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, id)
}

// SetElection stores (or refreshes) the local view of an on-chain election.
func (s *Storage) SetElection(e *types.Election) error {
	if e == nil {
		return fmt.Errorf("nil election")
	}
	return s.setArtifact(electionPrefix, electionKey(e.ID), e)
}

// Election returns the local view of the election with the given ID.
// Returns ErrNotFound if the orchestrator has not discovered it yet.
func (s *Storage) Election(id uint64) (*types.Election, error) {
	e := &types.Election{}
	if err := s.getArtifact(electionPrefix, electionKey(id), e); err != nil {
		return nil, err
	}
	return e, nil
}

// ListElections returns all locally known elections ordered by ID.
func (s *Storage) ListElections() ([]*types.Election, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, electionPrefix)
	var out []*types.Election
	var decodeErr error
	if err := rd.Iterate(nil, func(_, v []byte) bool {
		e := &types.Election{}
		if decodeErr = decodeArtifact(v, e); decodeErr != nil {
			return false
		}
		out = append(out, e)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate elections: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode election: %w", decodeErr)
	}
	return out, nil
}

// LastScannedBlock returns the persisted low-water mark for the named
// watcher, or 0 if it never scanned.
func (s *Storage) LastScannedBlock(watcher string) (uint64, error) {
	var block uint64
	if err := s.getArtifact(watcherStatePrefix, []byte(watcher), &block); err != nil {
		if err == ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return block, nil
}

// SetLastScannedBlock advances the watcher's low-water mark. Called only
// after a scan window has been fully processed.
func (s *Storage) SetLastScannedBlock(watcher string, block uint64) error {
	return s.setArtifact(watcherStatePrefix, []byte(watcher), block)
}
