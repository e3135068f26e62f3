package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Logging     LoggingConfig    `yaml:"logging"`
	Exchanges   ExchangesConfig  `yaml:"exchanges"`
	Fetch       FetchConfig      `yaml:"fetch"`
	Validation  ValidationConfig `yaml:"validation"`
	Storage     StorageConfig    `yaml:"storage"`
	Model       ModelConfig      `yaml:"model"`
	Server      ServerConfig     `yaml:"server"`
	RateLimit   RateLimitConfig  `yaml:"ratelimit"`
	Metrics     struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Backup     BackupConfig     `yaml:"backup"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error fatal panic"`
	Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output     string `yaml:"output" default:"stdout"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
	MaxBackups int    `yaml:"max_backups" default:"5"`
	MaxAgeDays int    `yaml:"max_age_days" default:"30"`
	Compress   bool   `yaml:"compress"`
	Collector  struct {
		Enabled        bool          `yaml:"enabled"`
		Topic          string        `yaml:"topic" default:"btcpulse.logs"`
		Interval       time.Duration `yaml:"interval" default:"30s"`
		CountThreshold int           `yaml:"count_threshold" default:"100"`
	} `yaml:"collector"`
}

// ExchangeConfig tunes one source adapter. Zero values fall back to the
// adapter's own defaults, so an empty block is a valid configuration.
type ExchangeConfig struct {
	Disabled       bool          `yaml:"disabled"`
	BaseURL        string        `yaml:"base_url" validate:"omitempty,url"`
	Mirrors        []string      `yaml:"mirrors" validate:"dive,url"`
	Symbol         string        `yaml:"symbol"`
	PageLimit      int           `yaml:"page_limit" validate:"gte=0"`
	MaxFailures    int           `yaml:"max_failures" validate:"gte=0"`
	RetryPolicy    string        `yaml:"retry_policy" validate:"omitempty,oneof=constant linear exponential"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PageDelay      time.Duration `yaml:"page_delay"`
	PauseEvery     int           `yaml:"pause_every" validate:"gte=0"`
	PauseDuration  time.Duration `yaml:"pause_duration"`
}

type ExchangesConfig struct {
	Binance ExchangeConfig `yaml:"binance"`
	OKX     ExchangeConfig `yaml:"okx"`
	Huobi   ExchangeConfig `yaml:"huobi"`
}

type FetchConfig struct {
	FullStart      string        `yaml:"full_start" default:"2017-07-01" validate:"datetime=2006-01-02"`
	Timeout        time.Duration `yaml:"timeout" default:"2h"`
	SaveRaw        bool          `yaml:"save_raw" default:"true"`
	LockTTL        time.Duration `yaml:"lock_ttl" default:"3h"`
	FeatureSource  string        `yaml:"feature_source" default:"Binance"`
	PublishUpdates bool          `yaml:"publish_updates"`
}

type ValidationConfig struct {
	PriceDiffPercent   float64 `yaml:"price_diff_percent" default:"1" validate:"gt=0"`
	VolumeSpikeRatio   float64 `yaml:"volume_spike_ratio" default:"2" validate:"gt=0"`
	PriceGapRatio      float64 `yaml:"price_gap_ratio" default:"0.2" validate:"gt=0"`
	VolumeZScoreWindow int     `yaml:"volume_zscore_window" default:"7" validate:"gte=2"`
	VolumeZScoreLimit  float64 `yaml:"volume_zscore_limit" default:"3" validate:"gt=0"`
}

type StorageConfig struct {
	DataDir       string `yaml:"data_dir" default:"data" validate:"required"`
	ValidatedFile string `yaml:"validated_file" default:"btc_price_validated.json"`
	AnomaliesFile string `yaml:"anomalies_file" default:"btc_price_anomalies.json"`
	AnalysisFile  string `yaml:"analysis_file" default:"btc_price_analysis.json"`
	AuditFile     string `yaml:"audit_file" default:"btc_price_audit.json"`
}

type ModelConfig struct {
	Dir              string  `yaml:"dir" default:"models/btc_period_classifier" validate:"required"`
	Epochs           int     `yaml:"epochs" default:"100" validate:"gt=0"`
	BatchSize        int     `yaml:"batch_size" default:"32" validate:"gt=0"`
	LearningRate     float64 `yaml:"learning_rate" default:"0.001" validate:"gt=0"`
	ValidationSplit  float64 `yaml:"validation_split" default:"0.2" validate:"gte=0,lt=1"`
	DropoutRate      float64 `yaml:"dropout_rate" default:"0.2" validate:"gte=0,lt=1"`
	Seed             int64   `yaml:"seed" default:"42"`
	DisableAmplifier bool    `yaml:"disable_amplifier"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"3000" validate:"gt=0,lt=65536"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	CacheTTL        time.Duration `yaml:"cache_ttl" default:"1m"`
	PushInterval    time.Duration `yaml:"push_interval" default:"1s"`
	PingInterval    time.Duration `yaml:"ping_interval" default:"30s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
}

type RateLimitConfig struct {
	Disabled          bool `yaml:"disabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" default:"60" validate:"gt=0"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"btcpulse"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
	Topic        string   `yaml:"topic" default:"btcpulse.series"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"100ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"btcpulse-server"`
		Workers    int           `yaml:"workers" default:"1"`
		BufferSize int           `yaml:"buffer_size" default:"10"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"btcpulse"`
	Table            string        `yaml:"table" default:"daily_candles"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type BackupConfig struct {
	Dir       string        `yaml:"dir" default:"backups" validate:"required"`
	Retention time.Duration `yaml:"retention" default:"168h" validate:"gt=0"`
}

var validate = validator.New()

// Default returns a configuration with every default applied and nothing read from disk.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("BTCPULSE_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.Model.Dir = v
	}
	if v := os.Getenv("BTCPULSE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Logging.Collector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("logging.collector requires kafka to be enabled")
	}
	if c.Exchanges.Binance.Disabled && c.Exchanges.OKX.Disabled && c.Exchanges.Huobi.Disabled {
		return fmt.Errorf("at least one exchange must be enabled")
	}
	return nil
}
