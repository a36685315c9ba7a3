package storage

import (
	"encoding/binary"
	"fmt"

	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/victorrobotxt/toting/types"
)

// PushDeadLetter records a permanently failed unit of work. Records are never
// deleted automatically; clearing them is an operator action.
func (s *Storage) PushDeadLetter(rec *types.DeadLetterRecord) error {
	s.dlLock.Lock()
	defer s.dlLock.Unlock()

	seq, err := s.deadLetterCount()
	if err != nil {
		return err
	}
	key := binary.BigEndian.AppendUint64(nil, seq)
	return s.setArtifact(deadLetterPrefix, key, rec)
}

// ListDeadLetters returns all dead-lettered entries in insertion order.
func (s *Storage) ListDeadLetters() ([]*types.DeadLetterRecord, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, deadLetterPrefix)
	var out []*types.DeadLetterRecord
	var decodeErr error
	if err := rd.Iterate(nil, func(_, v []byte) bool {
		rec := &types.DeadLetterRecord{}
		if decodeErr = decodeArtifact(v, rec); decodeErr != nil {
			return false
		}
		out = append(out, rec)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode dead letter: %w", decodeErr)
	}
	return out, nil
}

// CountDeadLetters returns the number of dead-lettered entries.
func (s *Storage) CountDeadLetters() (uint64, error) {
	s.dlLock.Lock()
	defer s.dlLock.Unlock()
	return s.deadLetterCount()
}

func (s *Storage) deadLetterCount() (uint64, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, deadLetterPrefix)
	var count uint64
	if err := rd.Iterate(nil, func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return count, nil
}
