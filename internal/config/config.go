package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string `env:"FANRADAR_HTTP_ADDR" envDefault:":8080"`
	GinMode  string `env:"FANRADAR_GIN_MODE" envDefault:"release"`

	MySQLDSN string `env:"FANRADAR_MYSQL_DSN" envDefault:"root:password@tcp(127.0.0.1:3306)/fanradar?charset=utf8mb4&parseTime=True&loc=Local"`

	RedisAddr     string `env:"FANRADAR_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"FANRADAR_REDIS_PASSWORD"`
	RedisDB       int    `env:"FANRADAR_REDIS_DB" envDefault:"0"`

	// 为空时不启动 outbox 投递
	KafkaBrokers []string `env:"FANRADAR_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"FANRADAR_KAFKA_TOPIC" envDefault:"fanradar.membership"`

	OutboxBatchSize int           `env:"FANRADAR_OUTBOX_BATCH_SIZE" envDefault:"200"`
	OutboxInterval  time.Duration `env:"FANRADAR_OUTBOX_INTERVAL" envDefault:"1s"`
	OutboxMaxRetry  int           `env:"FANRADAR_OUTBOX_MAX_RETRY" envDefault:"5"`

	JWTAccessSecret  string        `env:"FANRADAR_JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `env:"FANRADAR_JWT_REFRESH_SECRET"`
	AccessTTL        time.Duration `env:"FANRADAR_ACCESS_TTL" envDefault:"30m"`
	RefreshTTL       time.Duration `env:"FANRADAR_REFRESH_TTL" envDefault:"24h"`

	UploadDir       string `env:"FANRADAR_UPLOAD_DIR" envDefault:"./static/uploads"`
	UploadURLPrefix string `env:"FANRADAR_UPLOAD_URL_PREFIX" envDefault:"/static/uploads"`
	MaxUploadBytes  int64  `env:"FANRADAR_MAX_UPLOAD_BYTES" envDefault:"10485760"`

	FandomCacheTTL time.Duration `env:"FANRADAR_FANDOM_CACHE_TTL" envDefault:"10m"`

	AllowedOrigins     []string `env:"FANRADAR_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitPerMinute int      `env:"FANRADAR_RATE_LIMIT_PER_MINUTE" envDefault:"120"`

	LogLevel      string `env:"FANRADAR_LOG_LEVEL" envDefault:"info"`
	LogPath       string `env:"FANRADAR_LOG_PATH" envDefault:"./logs/fanradar.log"`
	LogMaxSizeMB  int    `env:"FANRADAR_LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"FANRADAR_LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAgeDays int    `env:"FANRADAR_LOG_MAX_AGE_DAYS" envDefault:"7"`
	LogCompress   bool   `env:"FANRADAR_LOG_COMPRESS" envDefault:"false"`
}

// Load 从环境变量读取配置，密钥没有默认值
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return errors.New("FANRADAR_JWT_ACCESS_SECRET and FANRADAR_JWT_REFRESH_SECRET must be set")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("FANRADAR_MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
