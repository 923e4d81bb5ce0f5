package bidding

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// MembershipFilter answers "possibly present" or "definitely absent"
// for (job, worker) bid pairs. False positives are allowed, false
// negatives are not. The filter is a hot-path optimization only; the
// bid table's unique index stays the correctness mechanism, so a
// flushed or freshly started filter is safe.
type MembershipFilter interface {
	// Test reports whether the pair is possibly present.
	Test(jobID, workerID string) bool
	// Add registers the pair after a successful bid insert.
	Add(jobID, workerID string)
}

// BloomFilter is an in-process bloom-backed MembershipFilter.
type BloomFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewBloomFilter sizes the filter for the expected number of bid pairs
// at the given false-positive rate (the default config targets 1%).
func NewBloomFilter(expectedPairs uint, falsePositiveRate float64) *BloomFilter {
	return &BloomFilter{
		filter: bloom.NewWithEstimates(expectedPairs, falsePositiveRate),
	}
}

func pairKey(jobID, workerID string) []byte {
	return []byte(jobID + ":" + workerID)
}

func (f *BloomFilter) Test(jobID, workerID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.Test(pairKey(jobID, workerID))
}

func (f *BloomFilter) Add(jobID, workerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.Add(pairKey(jobID, workerID))
}
