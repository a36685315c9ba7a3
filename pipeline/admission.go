package pipeline

import (
	"time"

	"github.com/victorrobotxt/toting/storage"
)

// AdmissionController enforces the per-identity daily proof quota. The count
// is kept in storage so it survives restarts; the conditional increment is
// atomic, so concurrent submissions can never admit more than the quota.
type AdmissionController struct {
	stg   *storage.Storage
	quota int
	now   func() time.Time
}

// NewAdmissionController builds a controller with the given daily quota.
func NewAdmissionController(stg *storage.Storage, quota int) *AdmissionController {
	return &AdmissionController{stg: stg, quota: quota, now: time.Now}
}

func (a *AdmissionController) day() string {
	return a.now().UTC().Format("2006-01-02")
}

// TryAdmit consumes one quota unit for the identity in the current UTC day.
// It returns false when the quota is already exhausted. The unit is consumed
// even if the request later turns out to be a cache hit.
func (a *AdmissionController) TryAdmit(identity string) (bool, error) {
	return a.stg.TryIncQuota(identity, a.day(), a.quota)
}

// Remaining reports how many proofs the identity may still request today.
// Never negative.
func (a *AdmissionController) Remaining(identity string) (int, error) {
	used, err := a.stg.QuotaCount(identity, a.day())
	if err != nil {
		return 0, err
	}
	left := a.quota - used
	if left < 0 {
		left = 0
	}
	return left, nil
}

// Quota returns the configured daily limit.
func (a *AdmissionController) Quota() int { return a.quota }
