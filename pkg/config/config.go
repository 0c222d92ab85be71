// Package config 定义 PSON 编解码相关的配置段（配置文件中的 pson 键）。
package config

import (
	"github.com/lk2023060901/pson-go/pkg/pson"
	"github.com/lk2023060901/pson-go/pkg/util/merr"
	zviper "github.com/lk2023060901/pson-go/pkg/util/viper"
)

// EnvPrefix 为配置项环境变量前缀，例如 PSON_PSON_DECODER_MAX_DEPTH。
const EnvPrefix = "PSON"

const (
	DefaultRingSize     = 64 * 1024
	DefaultMaxFrameSize = 16 * 1024 * 1024
	// DefaultMaxLength 为单个长度前缀的默认上限，与帧上限一致。
	DefaultMaxLength    = DefaultMaxFrameSize
)

type AllocatorConfig struct {
	// Kind 为 ring 或 heap。
	Kind string `mapstructure:"kind" json:"kind"`
	// RingSize 为环形分配器容量，单位字节。
	RingSize int `mapstructure:"ring_size" json:"ring_size"`
	// HeapLimit 为堆分配器存活字节上限，0 表示不限制。
	HeapLimit int `mapstructure:"heap_limit" json:"heap_limit"`
}

type DecoderConfig struct {
	MaxDepth  int    `mapstructure:"max_depth" json:"max_depth"`
	MaxLength uint64 `mapstructure:"max_length" json:"max_length"`
}

type EncoderConfig struct {
	// Strategy 为 two_pass 或 buffered。
	Strategy string `mapstructure:"strategy" json:"strategy"`
	MaxDepth int    `mapstructure:"max_depth" json:"max_depth"`
}

type StreamConfig struct {
	MaxFrameSize uint32 `mapstructure:"max_frame_size" json:"max_frame_size"`
	// Compression 为 none 或 zstd。
	Compression string `mapstructure:"compression" json:"compression"`
	// Secret 非空时对每帧加密并签名。
	Secret string `mapstructure:"secret" json:"-"`
}

// Config 为 pson 配置段。
type Config struct {
	Allocator AllocatorConfig `mapstructure:"allocator" json:"allocator"`
	Decoder   DecoderConfig   `mapstructure:"decoder" json:"decoder"`
	Encoder   EncoderConfig   `mapstructure:"encoder" json:"encoder"`
	Stream    StreamConfig    `mapstructure:"stream" json:"stream"`
}

// Default 返回默认配置。
func Default() Config {
	return Config{
		Allocator: AllocatorConfig{Kind: pson.AllocatorKindHeap, RingSize: DefaultRingSize},
		Decoder:   DecoderConfig{MaxDepth: pson.DefaultMaxDepth, MaxLength: DefaultMaxLength},
		Encoder:   EncoderConfig{Strategy: pson.StrategyTwoPass.String(), MaxDepth: pson.DefaultMaxDepth},
		Stream:    StreamConfig{MaxFrameSize: DefaultMaxFrameSize, Compression: "none"},
	}
}

// SetDefaults 把默认值注册到 viper，使环境变量可以覆盖每一个键。
func SetDefaults(c *zviper.Config) {
	d := Default()
	c.SetDefault("pson.allocator.kind", d.Allocator.Kind)
	c.SetDefault("pson.allocator.ring_size", d.Allocator.RingSize)
	c.SetDefault("pson.allocator.heap_limit", d.Allocator.HeapLimit)
	c.SetDefault("pson.decoder.max_depth", d.Decoder.MaxDepth)
	c.SetDefault("pson.decoder.max_length", d.Decoder.MaxLength)
	c.SetDefault("pson.encoder.strategy", d.Encoder.Strategy)
	c.SetDefault("pson.encoder.max_depth", d.Encoder.MaxDepth)
	c.SetDefault("pson.stream.max_frame_size", d.Stream.MaxFrameSize)
	c.SetDefault("pson.stream.compression", d.Stream.Compression)
	c.SetDefault("pson.stream.secret", d.Stream.Secret)
}

// Load 从 viper 配置中读取 pson 段并校验。
func Load(c *zviper.Config) (Config, error) {
	SetDefaults(c)
	var root struct {
		PSON Config `mapstructure:"pson"`
	}
	if err := c.Unmarshal(&root); err != nil {
		return Config{}, err
	}
	if err := root.PSON.Validate(); err != nil {
		return Config{}, err
	}
	return root.PSON, nil
}

// Validate 校验所有配置项，返回合并后的错误。
func (c Config) Validate() error {
	var errs []error
	switch c.Allocator.Kind {
	case pson.AllocatorKindRing:
		if c.Allocator.RingSize <= 0 {
			errs = append(errs, merr.WrapErrParameterInvalidMsg("allocator.ring_size must be positive, got %d", c.Allocator.RingSize))
		}
	case pson.AllocatorKindHeap:
		if c.Allocator.HeapLimit < 0 {
			errs = append(errs, merr.WrapErrParameterInvalidMsg("allocator.heap_limit must not be negative, got %d", c.Allocator.HeapLimit))
		}
	default:
		errs = append(errs, merr.WrapErrAllocatorNotDefined(c.Allocator.Kind))
	}
	if c.Decoder.MaxDepth < 0 {
		errs = append(errs, merr.WrapErrParameterInvalidMsg("decoder.max_depth must not be negative, got %d", c.Decoder.MaxDepth))
	}
	if _, err := pson.ParseStrategy(c.Encoder.Strategy); err != nil {
		errs = append(errs, err)
	}
	switch c.Stream.Compression {
	case "", "none", "zstd":
	default:
		errs = append(errs, merr.WrapErrParameterInvalid("none|zstd", c.Stream.Compression, "stream.compression"))
	}
	return merr.Combine(errs...)
}

// NewAllocator 按配置创建分配器。
func (c AllocatorConfig) NewAllocator() (pson.Allocator, error) {
	size := c.HeapLimit
	if c.Kind == pson.AllocatorKindRing {
		size = c.RingSize
	}
	return pson.NewAllocator(c.Kind, size)
}

// Options 返回对应的解码器配置。
func (c DecoderConfig) Options() pson.DecoderOptions {
	return pson.DecoderOptions{MaxDepth: c.MaxDepth, MaxLength: c.MaxLength}
}

// Options 返回对应的编码器配置，策略名非法时返回错误。
func (c EncoderConfig) Options() (pson.EncoderOptions, error) {
	strategy, err := pson.ParseStrategy(c.Strategy)
	if err != nil {
		return pson.EncoderOptions{}, err
	}
	return pson.EncoderOptions{Strategy: strategy, MaxDepth: c.MaxDepth}, nil
}
