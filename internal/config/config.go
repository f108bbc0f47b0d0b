package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	Point  PointConfig  `mapstructure:"point"`
	Outbox OutboxConfig `mapstructure:"outbox"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN 拼接 gorm mysql 驱动使用的连接串
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Notification string `mapstructure:"notification"`
}

// LedgerConfig 账本存储配置
//
// Driver 取值 mysql 或 memory，memory 仅用于本地调试，进程退出即丢失数据
type LedgerConfig struct {
	Driver        string        `mapstructure:"driver"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// PointConfig 积分业务的固定价格与奖励
type PointConfig struct {
	Init           int64 `mapstructure:"init"`
	TransferMin    int64 `mapstructure:"transfer_min"`
	BuyInvitecode  int64 `mapstructure:"buy_invitecode"`
	DataExport     int64 `mapstructure:"data_export"`
	InviteRegister int64 `mapstructure:"invite_register"`
	InvitecodeUsed int64 `mapstructure:"invitecode_used"`
}

type OutboxConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	MaxRetryCount int           `mapstructure:"max_retry_count"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

const envPrefix = "POINTLEDGER"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("kafka.topic.notification", "point_notification")
	v.SetDefault("ledger.driver", "mysql")
	v.SetDefault("ledger.max_retries", 3)
	v.SetDefault("ledger.retry_interval", 20*time.Millisecond)
	v.SetDefault("point.init", 500)
	v.SetDefault("point.transfer_min", 9)
	v.SetDefault("point.buy_invitecode", 120)
	v.SetDefault("point.data_export", 20)
	v.SetDefault("point.invite_register", 88)
	v.SetDefault("point.invitecode_used", 88)
	v.SetDefault("outbox.interval", 100*time.Millisecond)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_retry_count", 5)
	v.SetDefault("log.level", "info")
}

// LoadConfig 加载配置文件
//
// 环境变量可以覆盖文件中的值，例如 POINTLEDGER_MYSQL_HOST 覆盖 mysql.host
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验积分配置，价格和奖励必须为正数
func (c *Config) Validate() error {
	switch c.Ledger.Driver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("不支持的账本存储: %s", c.Ledger.Driver)
	}

	prices := map[string]int64{
		"point.buy_invitecode":  c.Point.BuyInvitecode,
		"point.data_export":     c.Point.DataExport,
		"point.invite_register": c.Point.InviteRegister,
		"point.invitecode_used": c.Point.InvitecodeUsed,
		"point.transfer_min":    c.Point.TransferMin,
	}
	for key, value := range prices {
		if value <= 0 {
			return fmt.Errorf("%s 必须大于0", key)
		}
	}
	if c.Point.Init < 0 {
		return fmt.Errorf("point.init 不能为负数")
	}
	if c.Ledger.MaxRetries < 0 {
		return fmt.Errorf("ledger.max_retries 不能为负数")
	}
	return nil
}
