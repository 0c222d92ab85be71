package application

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/lk2023060901/pson-go/internal/network/codec"
	"github.com/lk2023060901/pson-go/internal/network/compressor"
	"github.com/lk2023060901/pson-go/internal/network/crypto"
	"github.com/lk2023060901/pson-go/internal/network/framer"
	"github.com/lk2023060901/pson-go/internal/network/serializer"
	"github.com/lk2023060901/pson-go/pkg/config"
	zlog "github.com/lk2023060901/pson-go/pkg/log"
	"github.com/lk2023060901/pson-go/pkg/metrics"
	"github.com/lk2023060901/pson-go/pkg/pson"
	zviper "github.com/lk2023060901/pson-go/pkg/util/viper"
)

const (
	defaultConfigPath = "./config.yaml"
	configPathEnv     = "PSON_CONFIG_FILE_PATH"
)

// Application 是命令行工具的运行时容器，负责配置、日志与默认分配器的初始化。
type Application struct {
	cfg     *zviper.Config
	pson    config.Config
	args    []string
	loggers map[string]*zlog.MLogger
}

// New 创建一个 Application。
func New() *Application {
	return &Application{}
}

// Run 解析 os.Args 并完成初始化。配置文件路径优先级：
//  1. 默认：./config.yaml（不存在时使用默认配置）
//  2. 环境变量：PSON_CONFIG_FILE_PATH
//  3. 命令行：--config <path> 或 --config=<path>
//
// 除 --config 外的参数按原顺序保存在 Args() 中。
func (a *Application) Run() error {
	return a.RunWithArgs(os.Args[1:])
}

// RunWithArgs 与 Run 相同，但使用给定的参数列表。
func (a *Application) RunWithArgs(args []string) error {
	cfg, err := a.loadConfig(args)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return err
	}

	a.pson, err = config.Load(cfg)
	if err != nil {
		return fmt.Errorf("invalid pson config: %w", err)
	}

	metrics.Register(metrics.GetRegisterer())
	return a.installAllocator()
}

// Config 返回已加载的配置。
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// PSON 返回 pson 配置段。
func (a *Application) PSON() config.Config {
	return a.pson
}

// Args 返回去掉 --config 后的位置参数。
func (a *Application) Args() []string {
	return a.args
}

// Logger 返回配置中定义的命名 Logger，未知名称返回全局 Logger。
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &zlog.MLogger{Logger: zlog.L()}
}

// NewCodec 按 stream 配置创建文档流编解码器。
func (a *Application) NewCodec() (codec.Codec, error) {
	stream := a.pson.Stream
	comp, err := compressor.New(stream.Compression)
	if err != nil {
		return nil, err
	}
	encOpts, err := a.pson.Encoder.Options()
	if err != nil {
		return nil, err
	}

	opts := codec.Options{
		Framer: framer.NewLengthPrefixedFramer(stream.MaxFrameSize),
		Serializer: serializer.PSONSerializer{
			Encoder: encOpts,
			Decoder: a.pson.Decoder.Options(),
		},
		Compressor:        comp,
		EnableCompression: stream.Compression == compressor.KindZstd,
		Logger:            a.loggers["codec"],
	}
	if stream.Secret != "" {
		enc, err := crypto.NewAESGCMHMACCodecFromSecret([]byte(stream.Secret))
		if err != nil {
			return nil, err
		}
		opts.Encryptor = enc
		opts.EnableEncryption = true
	}
	return codec.New(opts)
}

// loadConfig 解析配置文件路径并加载。显式指定的文件不存在时返回错误。
func (a *Application) loadConfig(args []string) (*zviper.Config, error) {
	configPath := defaultConfigPath
	explicit := false

	if envPath := os.Getenv(configPathEnv); envPath != "" {
		configPath = envPath
		explicit = true
	}

	a.args = a.args[:0]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value after --config")
			}
			configPath = args[i+1]
			explicit = true
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			if val := strings.TrimPrefix(arg, "--config="); val != "" {
				configPath = val
				explicit = true
			}
			continue
		}
		a.args = append(a.args, arg)
	}

	cfg := zviper.NewWithEnvPrefix(config.EnvPrefix)
	if !explicit {
		if _, err := os.Stat(configPath); err != nil {
			return cfg, nil
		}
	}
	if err := cfg.LoadFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file %q: %w", configPath, err)
	}
	return cfg, nil
}

func (a *Application) installAllocator() error {
	alloc, err := a.pson.Allocator.NewAllocator()
	if err != nil {
		return err
	}
	if err := pson.Install(alloc); err != nil {
		return err
	}
	zlog.Debug("pson allocator installed",
		zap.String("kind", a.pson.Allocator.Kind),
		zap.Int("ringSize", a.pson.Allocator.RingSize),
		zap.Int("heapLimit", a.pson.Allocator.HeapLimit))
	return nil
}

func (a *Application) initLogging() error {
	if err := a.initGlobalLoggerFromEnv(); err != nil {
		return err
	}
	return a.initModuleLoggersFromConfig()
}

// initGlobalLoggerFromEnv 根据 PSON_LOG_* 环境变量配置全局 Logger：
//   - PSON_LOG_ENABLE：为 "1"/"true" 时开启输出，默认关闭。
//   - PSON_LOG_LEVEL：日志级别，默认 "info"。
//   - PSON_LOG_FORMAT：日志格式（"text" 或 "json"），默认 "text"。
//   - PSON_LOG_STDERR：是否输出到标准错误，默认 true（标准输出留给数据）。
//   - PSON_LOG_FILE_DIR / PSON_LOG_FILE：日志文件目录与文件名。
func (a *Application) initGlobalLoggerFromEnv() error {
	enabled := getenvBool("PSON_LOG_ENABLE", false)

	cfg := &zlog.Config{
		Level:  getenvDefault("PSON_LOG_LEVEL", "info"),
		Format: getenvDefault("PSON_LOG_FORMAT", "text"),
		Stderr: getenvBool("PSON_LOG_STDERR", true),
		File: zlog.FileLogConfig{
			RootPath: getenvDefault("PSON_LOG_FILE_DIR", ""),
			Filename: getenvDefault("PSON_LOG_FILE", ""),
		},
	}
	if !enabled {
		cfg.Stderr = false
		cfg.File.Filename = ""
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("init global logger from env: %w", err)
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggersFromConfig 根据配置中 logging 键创建命名 Logger。
//
//	logging:
//	  json2pson:
//	    level: debug
//	    stderr: true
func (a *Application) initModuleLoggersFromConfig() error {
	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return fmt.Errorf("init module logger %q: %w", name, err)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger.With(zlog.FieldModule(name))}
	}
	return nil
}

func getenvDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func getenvBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
