package storage

import (
	"fmt"
)

// quotaKey builds the counter key for one identity on one calendar day.
// Day is a "YYYY-MM-DD" bucket; counters are never deleted, they simply age
// out when the day key changes.
func quotaKey(identity, day string) []byte {
	return []byte(fmt.Sprintf("%s/%s", identity, day))
}

// TryIncQuota atomically increments the (identity, day) counter if and only
// if its pre-increment value is strictly below quota. It reports whether the
// increment was applied. The first request of a day creates the counter.
//
// The read-check-write sequence runs under a per-key lock stripe, so two
// concurrent calls at count == quota-1 resolve to exactly one success.
func (s *Storage) TryIncQuota(identity, day string, quota int) (bool, error) {
	key := quotaKey(identity, day)
	lock := s.quotaLock(key)
	lock.Lock()
	defer lock.Unlock()

	count, err := s.quotaCount(key)
	if err != nil {
		return false, err
	}
	if count >= quota {
		return false, nil
	}
	if err := s.setArtifact(quotaPrefix, key, count+1); err != nil {
		return false, fmt.Errorf("increment quota: %w", err)
	}
	return true, nil
}

// QuotaCount returns the number of admitted requests for (identity, day).
// A missing counter reads as zero.
func (s *Storage) QuotaCount(identity, day string) (int, error) {
	key := quotaKey(identity, day)
	lock := s.quotaLock(key)
	lock.Lock()
	defer lock.Unlock()
	return s.quotaCount(key)
}

func (s *Storage) quotaCount(key []byte) (int, error) {
	var count int
	if err := s.getArtifact(quotaPrefix, key, &count); err != nil {
		if err == ErrNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("read quota: %w", err)
	}
	return count, nil
}
