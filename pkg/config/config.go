package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"RoomArb/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
		RateLimit       struct {
			RequestsPerSec float64 `yaml:"requests_per_sec" default:"20"`
			Burst          int     `yaml:"burst" default:"40"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Log struct {
		Level      string        `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Pretty     bool          `yaml:"pretty"`
		Collect    bool          `yaml:"collect"`
		Topic      string        `yaml:"topic" default:"roomarb.logs"`
		FlushEvery time.Duration `yaml:"flush_every" default:"30s"`
	} `yaml:"log"`
	Postgres struct {
		DSN             string        `yaml:"dsn" validate:"required"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
		QueryTimeout    time.Duration `yaml:"query_timeout" default:"10s"`
	} `yaml:"postgres"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" validate:"required_if=Enabled true"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		InitSchema       bool          `yaml:"init_schema"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"roomarb"`
		TTL      time.Duration `yaml:"ttl" default:"5m"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled       bool          `yaml:"enabled"`
		Brokers       []string      `yaml:"brokers" validate:"required_if=Enabled true"`
		RequiredAcks  int           `yaml:"required_acks" default:"-1"`
		Compression   string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		MaxAttempts   int           `yaml:"max_attempts" default:"3"`
		BatchSize     int           `yaml:"batch_size" default:"100"`
		BatchBytes    int           `yaml:"batch_bytes" default:"1048576"`
		Linger        time.Duration `yaml:"linger" default:"1s"`
		WriteTimeout  time.Duration `yaml:"write_timeout" default:"10s"`
		Opportunities string        `yaml:"opportunities_topic" default:"roomarb.opportunities"`
		Decisions     string        `yaml:"decisions_topic" default:"roomarb.decisions"`
	} `yaml:"kafka"`
	LivePrice struct {
		BaseURL         string        `yaml:"base_url" validate:"required,url"`
		APIKey          string        `yaml:"api_key"`
		Timeout         time.Duration `yaml:"timeout" default:"30s"`
		RequestsPerSec  float64       `yaml:"requests_per_sec" default:"5"`
		Burst           int           `yaml:"burst" default:"10"`
		CacheTTL        time.Duration `yaml:"cache_ttl" default:"5m"`
		BreakerFailures uint32        `yaml:"breaker_failures" default:"5"`
		BreakerTimeout  time.Duration `yaml:"breaker_timeout" default:"30s"`
	} `yaml:"live_price"`
	Pipeline struct {
		AnalysisTimeout time.Duration `yaml:"analysis_timeout" default:"15s"`
		ForecastDays    int           `yaml:"forecast_days" default:"30" validate:"min=1,max=365"`
		CandidateHotels int           `yaml:"candidate_hotels" default:"30" validate:"min=1"`
		LookupWorkers   int           `yaml:"lookup_workers" default:"8" validate:"min=1"`
		LookupTimeout   time.Duration `yaml:"lookup_timeout" default:"30s"`
		ScanCities      []string      `yaml:"scan_cities"`
		PredictOnScan   bool          `yaml:"predict_on_scan"`
		// AgentWeights overrides consensus weights keyed by agent id.
		AgentWeights map[string]float64 `yaml:"agent_weights" validate:"dive,gte=0"`
		MinReports   int                `yaml:"min_reports" default:"2" validate:"min=1,max=4"`
	} `yaml:"pipeline"`
}

var validate = validator.New()

// Default returns a Config with every default applied and nothing loaded.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Postgres.DSN = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("LIVE_PRICE_URL"); v != "" {
		c.LivePrice.BaseURL = v
	}
	if v := getenv("LIVE_PRICE_API_KEY"); v != "" {
		c.LivePrice.APIKey = v
	}
	if v := getenv("SCAN_CITIES"); v != "" {
		c.Pipeline.ScanCities = util.SplitCSV(v)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.LivePrice.Timeout > c.Pipeline.LookupTimeout {
		return fmt.Errorf("live_price.timeout %s exceeds pipeline.lookup_timeout %s", c.LivePrice.Timeout, c.Pipeline.LookupTimeout)
	}
	return nil
}
