package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// 数据库配置
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"postgres://localhost:5432/fixtures?sslmode=disable"`

	// 服务器配置
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// 操作员鉴权
	JWTSecret    string `env:"JWT_SECRET"`
	OperatorRole string `env:"OPERATOR_ROLE" envDefault:"operator"`

	// AMQP (比赛快照与阵容通知), 为空时不启用
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"fixtures"`

	// MQTT (保留消息), 为空时不启用
	MQTTBroker      string `env:"MQTT_BROKER"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"fixtures"`

	// 飞书告警
	LarkWebhook string `env:"LARK_WEBHOOK"`

	// 名单缓存与客户端时钟推送间隔
	RosterCacheTTL time.Duration `env:"ROSTER_CACHE_TTL" envDefault:"5m"`
	ClockTick      time.Duration `env:"CLOCK_TICK" envDefault:"1s"`

	// OpenTelemetry, 为空时不导出
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置组合
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.JWTSecret == "" && c.Environment == "production" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.ClockTick <= 0 {
		return fmt.Errorf("CLOCK_TICK must be positive")
	}
	return nil
}
