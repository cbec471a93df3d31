// Package config 管理 datachat 客户端配置
// 优先级：命令行参数 > 环境变量（DATACHAT_ 前缀，.env 会先被加载）> 配置文件 > 默认值
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 DATACHAT_SERVER_URL -> server.url
const EnvPrefix = "DATACHAT"

// DefaultServerURL 默认后端地址
const DefaultServerURL = "http://localhost:8001"

// Config 客户端配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Log    LogConfig    `mapstructure:"log"`
	UI     UIConfig     `mapstructure:"ui"`
	Stub   StubConfig   `mapstructure:"stub"`
}

// ServerConfig 后端服务配置
type ServerConfig struct {
	URL     string        `mapstructure:"url"`     // HTTP API 地址
	Timeout time.Duration `mapstructure:"timeout"` // 请求超时，0 表示不设置
}

// StoreConfig 会话存储配置
type StoreConfig struct {
	Backend   string        `mapstructure:"backend"`    // memory / file / redis / sql
	Key       string        `mapstructure:"key"`        // 存储键
	TTL       time.Duration `mapstructure:"ttl"`        // memory / redis 作用域有效期，0 表示进程存活期间
	Path      string        `mapstructure:"path"`       // file 后端路径
	SQLDriver string        `mapstructure:"sql_driver"` // sqlite / mysql
	SQLDSN    string        `mapstructure:"sql_dsn"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string `mapstructure:"level"`   // debug / info / warn / error
	File    string `mapstructure:"file"`    // 滚动日志文件
	Console bool   `mapstructure:"console"` // 是否同时输出到 stderr
}

// UIConfig 交互界面偏好
type UIConfig struct {
	RowsPerPage      int  `mapstructure:"rows_per_page"`
	Color            bool `mapstructure:"color"`
	ConfirmModeReset bool `mapstructure:"confirm_mode_reset"` // CSV 模式下新建/切换会话前确认
}

// StubConfig 本地模拟后端配置
type StubConfig struct {
	Addr string `mapstructure:"addr"`
}

var (
	v          *viper.Viper
	cfg        *Config
	configPath string
	configDir  string
)

// Init 初始化配置
// configFile 为空时使用 ~/.datachat/config.yaml，不存在则写入默认配置
func Init(configFile string) error {
	// .env 不存在不是错误
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("获取用户目录失败: %w", err)
	}
	configDir = filepath.Join(home, ".datachat")

	if configFile == "" {
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
		configFile = filepath.Join(configDir, "config.yaml")
	}
	configPath = configFile

	v = newViper(configDir)
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("读取配置失败: %w", err)
		}
		// 忽略写入失败，默认值仍然生效
		_ = v.SafeWriteConfigAs(configPath)
	}

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return fmt.Errorf("解析配置失败: %w", err)
	}
	cfg = loaded
	return nil
}

// Load 从指定文件加载配置，不写回磁盘，也不影响全局配置
// dataDir 用于计算默认的日志和存储路径
func Load(configFile, dataDir string) (*Config, error) {
	lv := newViper(dataDir)
	if configFile != "" {
		lv.SetConfigFile(configFile)
		if err := lv.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	loaded := &Config{}
	if err := lv.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return loaded, nil
}

// newViper 创建带默认值和环境变量绑定的 viper 实例
func newViper(dataDir string) *viper.Viper {
	nv := viper.New()
	nv.SetConfigType("yaml")

	nv.SetEnvPrefix(EnvPrefix)
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	setDefaults(nv, dataDir)
	return nv
}

// setDefaults 设置默认值
func setDefaults(nv *viper.Viper, dataDir string) {
	nv.SetDefault("server.url", DefaultServerURL)
	nv.SetDefault("server.timeout", time.Duration(0))

	nv.SetDefault("store.backend", "memory")
	nv.SetDefault("store.key", "chatbot_sessions")
	nv.SetDefault("store.ttl", time.Duration(0))
	nv.SetDefault("store.path", filepath.Join(dataDir, "sessions.json"))
	nv.SetDefault("store.sql_driver", "sqlite")
	nv.SetDefault("store.sql_dsn", filepath.Join(dataDir, "sessions.db"))

	nv.SetDefault("redis.addr", "localhost:6379")
	nv.SetDefault("redis.username", "")
	nv.SetDefault("redis.password", "")
	nv.SetDefault("redis.db", 0)

	nv.SetDefault("log.level", "info")
	nv.SetDefault("log.file", filepath.Join(dataDir, "logs", "datachat.log"))
	nv.SetDefault("log.console", false)

	nv.SetDefault("ui.rows_per_page", 10)
	nv.SetDefault("ui.color", true)
	nv.SetDefault("ui.confirm_mode_reset", true)

	nv.SetDefault("stub.addr", ":8001")
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Get 获取配置，未初始化时返回默认配置
func Get() *Config {
	if cfg == nil {
		loaded, err := Load("", "")
		if err != nil {
			return &Config{Server: ServerConfig{URL: DefaultServerURL}}
		}
		return loaded
	}
	return cfg
}

// Path 当前配置文件路径
func Path() string {
	return configPath
}

// GetServerURL 获取服务器地址
func GetServerURL() string {
	if cfg == nil {
		return DefaultServerURL
	}
	return cfg.Server.URL
}

// SetServerURL 设置服务器地址（只影响本次运行）
func SetServerURL(url string) {
	url = strings.TrimRight(url, "/")
	if v != nil {
		v.Set("server.url", url)
	}
	if cfg != nil {
		cfg.Server.URL = url
	}
}

// SetStoreBackend 设置存储后端（只影响本次运行）
func SetStoreBackend(backend string) {
	if v != nil {
		v.Set("store.backend", backend)
	}
	if cfg != nil {
		cfg.Store.Backend = backend
	}
}
