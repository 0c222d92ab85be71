package pson

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

type AllocatorSuite struct {
	suite.Suite
}

func (s *AllocatorSuite) TestRingWrap() {
	r := NewRingAllocator(8)
	s.Equal(8, r.Cap())

	a, err := r.Allocate(6)
	s.Require().NoError(err)
	copy(a, "abcdef")

	b, err := r.Allocate(6)
	s.Require().NoError(err)
	copy(b, "uvwxyz")

	// 第二次申请回绕到起点，覆盖了第一块
	s.Equal("uvwxyz", string(a))
	stats := r.Stats()
	s.EqualValues(1, stats.Wraps)
	s.EqualValues(12, stats.Allocated)
	s.Equal(6, stats.Live)
}

func (s *AllocatorSuite) TestRingBlockTooLarge() {
	r := NewRingAllocator(8)
	_, err := r.Allocate(9)
	s.True(errors.Is(err, merr.ErrAllocBlockTooLarge))
	s.EqualValues(1, r.Stats().Failures)

	_, err = r.Allocate(-1)
	s.True(errors.Is(err, merr.ErrParameterInvalid))
}

func (s *AllocatorSuite) TestRingReset() {
	r := NewRingAllocator(16)
	_, err := r.Allocate(10)
	s.Require().NoError(err)
	r.Reset()
	s.Equal(0, r.Stats().Live)
}

func (s *AllocatorSuite) TestHeapLimit() {
	h := NewHeapAllocator(4)
	a, err := h.Allocate(3)
	s.Require().NoError(err)
	s.Len(a, 3)

	_, err = h.Allocate(2)
	s.True(errors.Is(err, merr.ErrAllocOutOfMemory))
	s.True(merr.IsRetryableErr(err))

	h.Deallocate(a)
	_, err = h.Allocate(2)
	s.NoError(err)

	stats := h.Stats()
	s.Equal(2, stats.Live)
	s.EqualValues(5, stats.Allocated)
	s.EqualValues(1, stats.Failures)
}

func (s *AllocatorSuite) TestHeapUnlimited() {
	h := NewHeapAllocator(0)
	_, err := h.Allocate(1 << 20)
	s.NoError(err)
	s.Equal(0, h.Limit())
}

func (s *AllocatorSuite) TestNewAllocator() {
	a, err := NewAllocator(AllocatorKindRing, 64)
	s.Require().NoError(err)
	s.IsType(&RingAllocator{}, a)

	a, err = NewAllocator(AllocatorKindHeap, 0)
	s.Require().NoError(err)
	s.IsType(&HeapAllocator{}, a)

	_, err = NewAllocator("slab", 0)
	s.True(errors.Is(err, merr.ErrAllocatorNotDefined))
}

func (s *AllocatorSuite) TestInstallOnce() {
	s.NotNil(Default())

	err := Install(nil)
	s.True(errors.Is(err, merr.ErrParameterMissing))

	h := NewHeapAllocator(0)
	s.Require().NoError(Install(h))
	s.True(Installed())
	s.Same(h, Default())

	err = Install(NewHeapAllocator(0))
	s.True(errors.Is(err, merr.ErrAllocatorInstalled))
	s.Same(h, Default())
}

func (s *AllocatorSuite) TestConcurrentRing() {
	r := NewRingAllocator(1024)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b, err := r.Allocate(16)
				s.NoError(err)
				s.Len(b, 16)
			}
		}()
	}
	wg.Wait()
	s.EqualValues(8*100*16, r.Stats().Allocated)
}

func TestAllocator(t *testing.T) {
	suite.Run(t, new(AllocatorSuite))
}
