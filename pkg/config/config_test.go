package config

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/pson-go/pkg/pson"
	"github.com/lk2023060901/pson-go/pkg/util/merr"
	zviper "github.com/lk2023060901/pson-go/pkg/util/viper"
)

type ConfigSuite struct {
	suite.Suite
}

func (s *ConfigSuite) TestDefaults() {
	cfg, err := Load(zviper.New())
	s.Require().NoError(err)
	s.Equal(Default(), cfg)
	s.EqualValues(DefaultMaxLength, cfg.Decoder.Options().MaxLength)

	a, err := cfg.Allocator.NewAllocator()
	s.Require().NoError(err)
	s.IsType(&pson.HeapAllocator{}, a)
}

func (s *ConfigSuite) TestLoadYAML() {
	c := zviper.New()
	s.Require().NoError(c.LoadReader(strings.NewReader(`
pson:
  allocator:
    kind: ring
    ring_size: 1024
  decoder:
    max_depth: 8
    max_length: 4096
  encoder:
    strategy: buffered
  stream:
    compression: zstd
`), "yaml"))

	cfg, err := Load(c)
	s.Require().NoError(err)
	s.Equal(pson.AllocatorKindRing, cfg.Allocator.Kind)
	s.Equal(pson.DecoderOptions{MaxDepth: 8, MaxLength: 4096}, cfg.Decoder.Options())

	opts, err := cfg.Encoder.Options()
	s.Require().NoError(err)
	s.Equal(pson.StrategyBuffered, opts.Strategy)
	s.Equal(pson.DefaultMaxDepth, opts.MaxDepth)

	a, err := cfg.Allocator.NewAllocator()
	s.Require().NoError(err)
	ring, ok := a.(*pson.RingAllocator)
	s.Require().True(ok)
	s.Equal(1024, ring.Cap())
}

func (s *ConfigSuite) TestEnvOverride() {
	s.T().Setenv("PSON_PSON_DECODER_MAX_DEPTH", "12")
	cfg, err := Load(zviper.NewWithEnvPrefix(EnvPrefix))
	s.Require().NoError(err)
	s.Equal(12, cfg.Decoder.MaxDepth)
}

func (s *ConfigSuite) TestValidate() {
	cfg := Default()
	cfg.Allocator.Kind = "slab"
	cfg.Encoder.Strategy = "three_pass"
	cfg.Stream.Compression = "lz4"
	err := cfg.Validate()
	s.True(errors.Is(err, merr.ErrAllocatorNotDefined))
	s.True(errors.Is(err, merr.ErrParameterInvalid))

	cfg = Default()
	cfg.Allocator.Kind = pson.AllocatorKindRing
	cfg.Allocator.RingSize = 0
	s.True(errors.Is(cfg.Validate(), merr.ErrParameterInvalid))
}

func TestConfig(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}
