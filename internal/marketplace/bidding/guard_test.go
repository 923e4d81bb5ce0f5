package bidding

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
)

type stubFilter struct {
	hit   bool
	added [][2]string
}

func (f *stubFilter) Test(jobID, workerID string) bool { return f.hit }
func (f *stubFilter) Add(jobID, workerID string) {
	f.added = append(f.added, [2]string{jobID, workerID})
}

type stubChecker struct {
	exists bool
	err    error
	calls  int
}

func (c *stubChecker) BidExists(ctx context.Context, jobID, workerID string) (bool, error) {
	c.calls++
	return c.exists, c.err
}

func TestDuplicateBidGuard_Validate(t *testing.T) {
	tests := []struct {
		name       string
		filterHit  bool
		bidExists  bool
		storeErr   error
		wantErr    error
		storeCalls int
	}{
		{
			name:       "filter miss allows without store check",
			filterHit:  false,
			storeCalls: 0,
		},
		{
			name:       "filter hit confirmed by store",
			filterHit:  true,
			bidExists:  true,
			wantErr:    domain.ErrDuplicateBid,
			storeCalls: 1,
		},
		{
			name:       "filter false positive allows",
			filterHit:  true,
			bidExists:  false,
			storeCalls: 1,
		},
		{
			name:       "store failure surfaces",
			filterHit:  true,
			storeErr:   errors.New("connection reset"),
			wantErr:    errors.New("connection reset"),
			storeCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &stubChecker{exists: tt.bidExists, err: tt.storeErr}
			guard := NewDuplicateBidGuard(&stubFilter{hit: tt.filterHit}, checker, slog.New(slog.DiscardHandler))

			err := guard.Validate(context.Background(), "job-1", "worker-1")

			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, domain.ErrDuplicateBid) {
					assert.ErrorIs(t, err, domain.ErrDuplicateBid)
				} else {
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.storeCalls, checker.calls)
		})
	}
}

func TestDuplicateBidGuard_Record(t *testing.T) {
	filter := &stubFilter{}
	guard := NewDuplicateBidGuard(filter, &stubChecker{}, slog.New(slog.DiscardHandler))

	guard.Record("job-1", "worker-1")

	require.Len(t, filter.added, 1)
	assert.Equal(t, [2]string{"job-1", "worker-1"}, filter.added[0])
}

func TestBloomFilter(t *testing.T) {
	t.Run("fresh filter reports absent", func(t *testing.T) {
		f := NewBloomFilter(1000, 0.01)
		assert.False(t, f.Test("job-1", "worker-1"))
	})

	t.Run("added pair reports present", func(t *testing.T) {
		f := NewBloomFilter(1000, 0.01)
		f.Add("job-1", "worker-1")
		assert.True(t, f.Test("job-1", "worker-1"))
	})

	t.Run("pair key distinguishes job and worker", func(t *testing.T) {
		f := NewBloomFilter(1000, 0.01)
		f.Add("job-1", "worker-1")
		assert.False(t, f.Test("job-2", "worker-2"))
	})
}
