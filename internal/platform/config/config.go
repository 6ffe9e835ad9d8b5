package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Session       SessionConfig       `mapstructure:"session"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Watching      WatchingConfig      `mapstructure:"watching"`
	TMDB          TMDBConfig          `mapstructure:"tmdb"`
	Log           LogConfig           `mapstructure:"log"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode    string     `mapstructure:"mode"`
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig 定义了数据库和缓存相关的配置
type DatabaseConfig struct {
	// Driver 取值 sqlite 或 postgres
	Driver string      `mapstructure:"driver"`
	DSN    string      `mapstructure:"dsn"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig 定义了Redis的配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig 定义了登录会话的配置
type SessionConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookieName"`

	// 每个IP在 LoginWindow 内最多尝试 LoginAttempts 次登录或注册，0 表示不限制
	LoginAttempts int           `mapstructure:"loginAttempts"`
	LoginWindow   time.Duration `mapstructure:"loginWindow"`
}

// NotificationsConfig 定义了通知保留策略
type NotificationsConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
	MaxDataKeys   int           `mapstructure:"maxDataKeys"`

	// 可以通过接口发送广播或给其他用户发系统通知的用户ID
	Admins []string `mapstructure:"admins"`
}

// WatchingConfig 定义了“正在观看”记录的过期时间
type WatchingConfig struct {
	StaleAfter time.Duration `mapstructure:"staleAfter"`
}

// TMDBConfig 定义了外部影视元数据服务的访问方式
type TMDBConfig struct {
	BaseURL          string        `mapstructure:"baseURL"`
	AccessToken      string        `mapstructure:"accessToken"`
	Timeout          time.Duration `mapstructure:"timeout"`
	CacheTTL         time.Duration `mapstructure:"cacheTTL"`
	FailureThreshold uint32        `mapstructure:"failureThreshold"`
	OpenTimeout      time.Duration `mapstructure:"openTimeout"`
}

// LogConfig 定义了日志输出
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:5173"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "tvdom.db")
	v.SetDefault("database.redis.address", "localhost:6379")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("session.ttl", 30*24*time.Hour)
	v.SetDefault("session.cookieName", "tvdom_session")
	v.SetDefault("session.loginAttempts", 20)
	v.SetDefault("session.loginWindow", 15*time.Minute)

	v.SetDefault("notifications.retention", 90*24*time.Hour)
	v.SetDefault("notifications.sweepInterval", time.Hour)
	v.SetDefault("notifications.maxDataKeys", 20)
	v.SetDefault("notifications.admins", []string{})

	v.SetDefault("watching.staleAfter", 6*time.Hour)

	v.SetDefault("tmdb.baseURL", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb.timeout", 10*time.Second)
	v.SetDefault("tmdb.cacheTTL", 6*time.Hour)
	v.SetDefault("tmdb.failureThreshold", 5)
	v.SetDefault("tmdb.openTimeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Default 返回只包含默认值的配置，测试中使用。
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// 默认值总能被反序列化
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 配置文件不存在时只使用默认值和环境变量
func LoadConfig() (*Config, error) {
	// 1. 加载可选的 .env 文件，已存在的环境变量不会被覆盖
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("无法加载.env文件: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// 2. 设置配置文件名和类型
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// 3. 允许通过环境变量覆盖配置，例如 SERVER_ADDRESS=:9090
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// TMDB令牌沿用旧的环境变量名
	_ = v.BindEnv("tmdb.accessToken", "TMDB_ACCESS_TOKEN", "TMDB_ACCESSTOKEN")

	// 4. 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	// 5. 将配置反序列化到结构体中
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法解析配置: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl 必须为正数")
	}
	if c.Notifications.Retention <= 0 || c.Notifications.SweepInterval <= 0 {
		return fmt.Errorf("notifications.retention 和 notifications.sweepInterval 必须为正数")
	}
	return nil
}
