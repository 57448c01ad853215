package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Reservation ReservationConfig `mapstructure:"reservation"`
	MQ          MQConfig          `mapstructure:"mq"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         LogConfig         `mapstructure:"log"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogMode         bool   `mapstructure:"log_mode"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	CacheTTL     int    `mapstructure:"cache_ttl"`
}

// GatewayConfig 模拟支付网关配置
// 教学要点：成功率可配置，测试中由确定性Mock替代
type GatewayConfig struct {
	PaySuccessRate    int `mapstructure:"pay_success_rate"`    // 支付成功率（0-100）
	RefundSuccessRate int `mapstructure:"refund_success_rate"` // 退款成功率（0-100）
	LatencyMs         int `mapstructure:"latency_ms"`          // 模拟网关耗时（毫秒）
}

// ReservationConfig 预留配置
// 教学要点：业务配置与技术配置分离
type ReservationConfig struct {
	DefaultExpirationMinutes int `mapstructure:"default_expiration_minutes"`
	SweepInterval            int `mapstructure:"sweep_interval"`
	SweepBatchSize           int `mapstructure:"sweep_batch_size"`
}

type MQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetEnvPrefix("ORDERCORE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("数据库DSN不能为空")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("Redis地址不能为空")
	}

	if c.Gateway.PaySuccessRate < 0 || c.Gateway.PaySuccessRate > 100 {
		return fmt.Errorf("无效的支付成功率: %d", c.Gateway.PaySuccessRate)
	}

	if c.Gateway.RefundSuccessRate < 0 || c.Gateway.RefundSuccessRate > 100 {
		return fmt.Errorf("无效的退款成功率: %d", c.Gateway.RefundSuccessRate)
	}

	if c.Reservation.SweepInterval <= 0 {
		return fmt.Errorf("无效的回收扫描间隔: %d", c.Reservation.SweepInterval)
	}

	if c.MQ.Enabled && c.MQ.URL == "" {
		return fmt.Errorf("启用MQ时连接URL不能为空")
	}

	return nil
}

func (c *ReservationConfig) GetDefaultExpiration() time.Duration {
	if c.DefaultExpirationMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.DefaultExpirationMinutes) * time.Minute
}

func (c *ReservationConfig) GetSweepInterval() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}

func (c *RedisConfig) GetCacheTTL() time.Duration {
	if c.CacheTTL <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.CacheTTL) * time.Second
}

func (c *GatewayConfig) GetLatency() time.Duration {
	return time.Duration(c.LatencyMs) * time.Millisecond
}
