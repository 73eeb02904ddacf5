package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	System    SystemConfig    `mapstructure:"system"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	Path              string        `mapstructure:"path"`
	ReadBufferSize    int           `mapstructure:"read_buffer_size"`
	WriteBufferSize   int           `mapstructure:"write_buffer_size"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	PongTimeout       time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	EnableCompression bool          `mapstructure:"enable_compression"`
}

// SerialConfig 串口配置
type SerialConfig struct {
	MockMode     bool            `mapstructure:"mock_mode"` // 调试模式（使用模拟设备）
	Port         string          `mapstructure:"port"`      // 首选端口，留空时由用户通过接口选择
	BaudRate     int             `mapstructure:"baud_rate"`
	ReadTimeout  time.Duration   `mapstructure:"read_timeout"`
	BootDelay    time.Duration   `mapstructure:"boot_delay"` // 打开串口后等待板子复位的时间
	PortPatterns []string        `mapstructure:"port_patterns"`
	MaxPortIndex int             `mapstructure:"max_port_index"`
	AutoConnect  bool            `mapstructure:"auto_connect"`
	Reconnect    ReconnectConfig `mapstructure:"reconnect"`
}

// ReconnectConfig 自动重连配置
type ReconnectConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	MaxInterval time.Duration `mapstructure:"max_interval"`
}

// VaultConfig 密码槽与发送历史配置
type VaultConfig struct {
	History HistoryConfig `mapstructure:"history"`
}

// HistoryConfig 发送历史写入配置
type HistoryConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	RetentionDays int           `mapstructure:"retention_days"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// AuthConfig 操作员认证配置
type AuthConfig struct {
	Enabled       bool              `mapstructure:"enabled"`
	AccessSecret  string            `mapstructure:"access_secret"`
	RefreshSecret string            `mapstructure:"refresh_secret"`
	AccessExpire  time.Duration     `mapstructure:"access_expire"`
	RefreshExpire time.Duration     `mapstructure:"refresh_expire"`
	Bootstrap     BootstrapOperator `mapstructure:"bootstrap"`
}

// BootstrapOperator 初始操作员账号（首次启动时写入）
type BootstrapOperator struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	Timezone string `mapstructure:"timezone"`
	MaxProcs int    `mapstructure:"max_procs"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		// 设置配置文件路径
		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("autopass")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		// 设置环境变量前缀
		v.SetEnvPrefix("AUTOPASS")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		// 设置默认值
		setDefaults(v)

		// 读取配置文件
		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
		}

		// 解析配置到结构体
		cfg = &Config{}
		if err = v.Unmarshal(cfg); err != nil {
			return
		}
	})

	return err
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/autopass.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "info")
	v.SetDefault("database.auto_migrate", true)

	// WebSocket默认配置
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.enable_compression", true)

	// 串口默认配置（Arduino Leonardo类板子：9600波特率，打开后需等待复位）
	v.SetDefault("serial.mock_mode", false)
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.read_timeout", "1s")
	v.SetDefault("serial.boot_delay", "2s")
	v.SetDefault("serial.port_patterns", []string{"ttyACM", "ttyUSB"})
	v.SetDefault("serial.max_port_index", 9)
	v.SetDefault("serial.auto_connect", false)
	v.SetDefault("serial.reconnect.enabled", true)
	v.SetDefault("serial.reconnect.interval", "5s")
	v.SetDefault("serial.reconnect.max_interval", "30s")

	// 发送历史默认配置
	v.SetDefault("vault.history.buffer_size", 1000)
	v.SetDefault("vault.history.batch_size", 100)
	v.SetDefault("vault.history.flush_interval", "5s")
	v.SetDefault("vault.history.retention_days", 30)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "autopass.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	// 认证默认配置（本机单用户场景默认关闭）
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.access_secret", "autopass-access-secret")
	v.SetDefault("auth.refresh_secret", "autopass-refresh-secret")
	v.SetDefault("auth.access_expire", "2h")
	v.SetDefault("auth.refresh_expire", "168h")
	v.SetDefault("auth.bootstrap.username", "admin")
	v.SetDefault("auth.bootstrap.password", "admin123")

	// 系统默认配置
	v.SetDefault("system.timezone", "Local")
	v.SetDefault("system.max_procs", 0)
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}

		fmt.Println("配置已重新加载")
	})
}

// GetString 获取字符串配置
func GetString(key string) string {
	return v.GetString(key)
}

// GetInt 获取整数配置
func GetInt(key string) int {
	return v.GetInt(key)
}

// GetBool 获取布尔配置
func GetBool(key string) bool {
	return v.GetBool(key)
}

// GetFloat64 获取浮点数配置
func GetFloat64(key string) float64 {
	return v.GetFloat64(key)
}

// GetDuration 获取时间间隔配置
func GetDuration(key string) time.Duration {
	return v.GetDuration(key)
}

// IsSet 检查配置项是否存在
func IsSet(key string) bool {
	return v.IsSet(key)
}

// Set 动态设置配置值
func Set(key string, value interface{}) {
	v.Set(key, value)
}
