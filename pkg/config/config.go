package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	// zone names in training.timezone resolve without a system zoneinfo
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/GabrielWalak/delivery-prediction/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8000" validate:"gte=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
		CORS            bool          `yaml:"cors" default:"true"`
		Docs            bool          `yaml:"docs" default:"true"`
	} `yaml:"server"`
	Logger struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic"`
		Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
		MaxBackups int    `yaml:"max_backups" default:"5"`
		MaxAgeDays int    `yaml:"max_age_days" default:"14"`
		Compress   bool   `yaml:"compress"`
		Collector  struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"delivery.logs"`
			FlushInterval  time.Duration `yaml:"flush_interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100" validate:"gt=0"`
		} `yaml:"collector"`
	} `yaml:"logger"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Training   TrainingConfig `yaml:"training"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"delivery"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		FetchLimit       int           `yaml:"fetch_limit" default:"200000" validate:"gt=0"`
		BatchSize        int           `yaml:"batch_size" default:"500" validate:"gt=0"`
		BatchLinger      time.Duration `yaml:"batch_linger" default:"200ms"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN          string `yaml:"dsn"`
		OrdersTable  string `yaml:"orders_table" default:"delivered_orders"`
		RecordRuns   bool   `yaml:"record_runs"`
		MaxOpenConns int    `yaml:"max_open_conns" default:"5"`
		FetchLimit   int    `yaml:"fetch_limit" default:"200000" validate:"gt=0"`
	} `yaml:"postgres"`
	SQLite struct {
		Path       string `yaml:"path"`
		RecordRuns bool   `yaml:"record_runs"`
	} `yaml:"sqlite"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
	} `yaml:"redis"`
	Cache struct {
		Enabled bool          `yaml:"enabled"`
		Backend string        `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		Prefix  string        `yaml:"prefix" default:"delivery"`
		TTL     time.Duration `yaml:"ttl" default:"10m"`
		MaxSize int           `yaml:"max_size" default:"10000" validate:"gt=0"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled          bool     `yaml:"enabled"`
		Brokers          []string `yaml:"brokers"`
		PredictionsTopic string   `yaml:"predictions_topic" default:"delivery.predictions"`
		OrdersTopic      string   `yaml:"orders_topic" default:"delivery.orders"`
		RequiredAcks     int      `yaml:"required_acks" default:"-1"`
		Compression      string   `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
		Producer         struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async" default:"true"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"delivery-order-history"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"100"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"delivery.orders.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
}

// TrainingConfig drives the startup training run.
type TrainingConfig struct {
	Source    string        `yaml:"source" default:"synthetic" validate:"oneof=synthetic csv clickhouse postgres"`
	TestRatio float64       `yaml:"test_ratio" default:"0.2" validate:"gt=0,lt=1"`
	Seed      int64         `yaml:"seed" default:"42"`
	MinRows   int           `yaml:"min_rows" default:"50" validate:"gt=1"`
	Timeout   time.Duration `yaml:"timeout" default:"10m"`
	// Timezone is the zone of order timestamps that carry no offset; weekday
	// and month features are read in it too.
	Timezone  string        `yaml:"timezone" default:"UTC" validate:"required,timezone"`
	CSV       struct {
		Path    string        `yaml:"path"`
		URL     string        `yaml:"url" validate:"omitempty,url"`
		Timeout time.Duration `yaml:"timeout" default:"60s"`
	} `yaml:"csv"`
	Synthetic struct {
		Orders int `yaml:"orders" default:"5000" validate:"gt=0"`
	} `yaml:"synthetic"`
	IsolationForest struct {
		Trees         int     `yaml:"trees" default:"100" validate:"gt=0"`
		SampleSize    int     `yaml:"sample_size" default:"256" validate:"gt=1"`
		Contamination float64 `yaml:"contamination" default:"0.02" validate:"gte=0,lt=0.5"`
	} `yaml:"isolation_forest"`
	Boosting struct {
		Rounds         int     `yaml:"rounds" default:"150" validate:"gt=0"`
		LearningRate   float64 `yaml:"learning_rate" default:"0.1" validate:"gt=0,lte=1"`
		MaxDepth       int     `yaml:"max_depth" default:"4" validate:"gt=0,lte=12"`
		MinSamplesLeaf int     `yaml:"min_samples_leaf" default:"20" validate:"gt=0"`
		Bins           int     `yaml:"bins" default:"32" validate:"gt=1,lte=255"`
	} `yaml:"boosting"`
}

// Location resolves Timezone.
func (t TrainingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(t.Timezone)
}

var validate = validator.New()

// Default returns a config populated only from `default` tags.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.LookupEnv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected keys from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	if v, ok := get("APP_ENV"); ok {
		c.Environment = v
	}
	if v, ok := get("HTTP_PORT"); ok {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Logger.Level = strings.ToLower(v)
	}
	if v, ok := get("TRAINING_SOURCE"); ok {
		c.Training.Source = v
	}
	if v, ok := get("TRAINING_TIMEZONE"); ok {
		c.Training.Timezone = v
	}
	if v, ok := get("TRAINING_CSV_PATH"); ok {
		c.Training.CSV.Path = v
	}
	if v, ok := get("TRAINING_CSV_URL"); ok {
		c.Training.CSV.URL = v
	}
	if v, ok := get("CLICKHOUSE_HOST"); ok {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v, ok := get("POSTGRES_DSN"); ok {
		c.Postgres.DSN = v
	}
	if v, ok := get("REDIS_ADDR"); ok {
		host, port, found := strings.Cut(v, ":")
		c.Redis.Host = host
		if found {
			c.Redis.Port = util.ParseIntDefault(port, c.Redis.Port)
		}
	}
	if v, ok := get("KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	switch c.Training.Source {
	case "csv":
		if c.Training.CSV.Path == "" && c.Training.CSV.URL == "" {
			return fmt.Errorf("training.csv.path or training.csv.url is required for csv source")
		}
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("clickhouse must be enabled for clickhouse training source")
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for postgres training source")
		}
	}
	if c.Postgres.RecordRuns && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required when postgres.record_runs is set")
	}
	if c.SQLite.RecordRuns && c.SQLite.Path == "" {
		return fmt.Errorf("sqlite.path is required when sqlite.record_runs is set")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.Consumer.Enabled && (!c.Kafka.Enabled || !c.ClickHouse.Enabled) {
		return fmt.Errorf("kafka.consumer requires kafka and clickhouse to be enabled")
	}
	if c.Logger.Collector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("logger.collector requires kafka to be enabled")
	}
	return nil
}
