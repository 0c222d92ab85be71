package viper

import (
	"io"
	"path/filepath"
	"strings"

	spfviper "github.com/spf13/viper"
)

// Config 封装 spf13/viper 实例，对外提供精简的 YAML/JSON 配置加载接口。
//
// 环境变量覆盖：设置了前缀时，键 "a.b_c" 对应环境变量 PREFIX_A_B_C。
// 只有设置过默认值或出现在配置文件中的键才会被 Unmarshal 读到；
// UnmarshalKey 只读取配置文件与默认值，不应用环境变量覆盖。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config。
func New() *Config {
	return &Config{
		v: spfviper.New(),
	}
}

// NewWithEnvPrefix 创建一个会读取 prefix 开头的环境变量的 Config。
func NewWithEnvPrefix(prefix string) *Config {
	c := New()
	c.v.SetEnvPrefix(prefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	c.v.AutomaticEnv()
	return c
}

func (c *Config) viper() *spfviper.Viper {
	if c.v == nil {
		c.v = spfviper.New()
	}
	return c.v
}

// LoadFile 将 YAML 或 JSON 配置文件加载到 Config 中。
// 文件类型通过扩展名（.yaml/.yml/.json）推断。
func (c *Config) LoadFile(path string) error {
	v := c.viper()
	v.SetConfigFile(path)
	if typ := configType(path); typ != "" {
		v.SetConfigType(typ)
	}
	return v.ReadInConfig()
}

// LoadReader 从 r 读取指定类型（yaml/json）的配置。
func (c *Config) LoadReader(r io.Reader, typ string) error {
	v := c.viper()
	v.SetConfigType(typ)
	return v.ReadConfig(r)
}

func configType(path string) string {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}

// SetDefault 设置键的默认值。
func (c *Config) SetDefault(key string, value any) {
	c.viper().SetDefault(key, value)
}

// IsSet 报告键是否由配置文件、环境变量或默认值提供。
func (c *Config) IsSet(key string) bool {
	return c.viper().IsSet(key)
}

// ConfigFileUsed 返回实际加载的配置文件路径，未加载时为空。
func (c *Config) ConfigFileUsed() string {
	return c.viper().ConfigFileUsed()
}

// Unmarshal 将完整配置反序列化到 dst，dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst any) error {
	return c.viper().Unmarshal(dst)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
func (c *Config) UnmarshalKey(key string, dst any) error {
	return c.viper().UnmarshalKey(key, dst)
}
