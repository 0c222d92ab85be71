package ring

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ArenaSuite struct {
	suite.Suite
}

func (s *ArenaSuite) TestNewRoundsToPowerOfTwo() {
	s.Equal(8, New(5).Cap())
	s.Equal(16, New(16).Cap())
	s.Equal(DefaultArenaSize, New(0).Cap())
}

func (s *ArenaSuite) TestAllocSequential() {
	a := New(16)
	b1, err := a.Alloc(4)
	s.Require().NoError(err)
	b2, err := a.Alloc(4)
	s.Require().NoError(err)
	s.Len(b1, 4)
	s.Equal(4, cap(b1))
	s.Equal(8, a.Offset())
	s.EqualValues(8, a.Allocated())

	copy(b1, "abcd")
	copy(b2, "efgh")
	s.Equal("abcd", string(b1))
	s.Equal("efgh", string(b2))
}

func (s *ArenaSuite) TestAllocWrapsAndOverwrites() {
	a := New(8)
	first, err := a.Alloc(6)
	s.Require().NoError(err)
	copy(first, "123456")

	// 剩余 2 字节不足，回绕到 0，覆盖 first 的前 4 字节。
	second, err := a.Alloc(4)
	s.Require().NoError(err)
	copy(second, "wxyz")

	s.EqualValues(1, a.Wraps())
	s.Equal("wxyz56", string(first))
	s.Equal(4, a.Offset())
}

func (s *ArenaSuite) TestAllocTooLarge() {
	a := New(8)
	_, err := a.Alloc(9)
	s.ErrorIs(err, ErrBlockTooLarge)
	_, err = a.Alloc(-1)
	s.ErrorIs(err, ErrBlockTooLarge)
}

func (s *ArenaSuite) TestZeroSizedAlloc() {
	a := New(8)
	b, err := a.Alloc(0)
	s.NoError(err)
	s.Len(b, 0)
	s.Equal(0, a.Offset())
}

func (s *ArenaSuite) TestReset() {
	a := New(8)
	_, _ = a.Alloc(6)
	_, _ = a.Alloc(6)
	a.Reset()
	s.Equal(0, a.Offset())
	s.EqualValues(0, a.Allocated())
	s.EqualValues(0, a.Wraps())
}

func TestArena(t *testing.T) {
	suite.Run(t, new(ArenaSuite))
}
