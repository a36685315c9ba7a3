package storage

import (
	"encoding/binary"
	"fmt"

	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/victorrobotxt/toting/types"
)

var auditSeqKey = []byte("seq")

// auditKey inverts the sequence number so that ascending iteration over the
// audit prefix yields newest records first.
func auditKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, ^seq)
}

// PushAudit appends one immutable record to the proof audit ledger.
func (s *Storage) PushAudit(rec *types.ProofAuditRecord) error {
	s.auditLock.Lock()
	defer s.auditLock.Unlock()

	seq, err := s.auditSeq()
	if err != nil {
		return err
	}
	val, err := encodeArtifact(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	tx := s.db.WriteTx()
	ledger := prefixeddb.NewPrefixedWriteTx(tx, auditPrefix)
	meta := prefixeddb.NewPrefixedWriteTx(tx, auditSeqPrefix)
	if err := ledger.Set(auditKey(seq), val); err != nil {
		tx.Discard()
		return err
	}
	if err := meta.Set(auditSeqKey, binary.BigEndian.AppendUint64(nil, seq+1)); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

// ListAudits returns up to limit audit records, most recent first, skipping
// the first skip records.
func (s *Storage) ListAudits(skip, limit int) ([]*types.ProofAuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rd := prefixeddb.NewPrefixedReader(s.db, auditPrefix)
	var out []*types.ProofAuditRecord
	var decodeErr error
	i := 0
	if err := rd.Iterate(nil, func(_, v []byte) bool {
		if i < skip {
			i++
			return true
		}
		rec := &types.ProofAuditRecord{}
		if decodeErr = decodeArtifact(v, rec); decodeErr != nil {
			return false
		}
		out = append(out, rec)
		return len(out) < limit
	}); err != nil {
		return nil, fmt.Errorf("iterate audits: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode audit record: %w", decodeErr)
	}
	return out, nil
}

// CountAudits returns the total number of audit records ever appended.
func (s *Storage) CountAudits() (uint64, error) {
	s.auditLock.Lock()
	defer s.auditLock.Unlock()
	return s.auditSeq()
}

func (s *Storage) auditSeq() (uint64, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, auditSeqPrefix)
	data, err := rd.Get(auditSeqKey)
	if err != nil {
		// first append ever
		return 0, nil
	}
	return binary.BigEndian.Uint64(data), nil
}
