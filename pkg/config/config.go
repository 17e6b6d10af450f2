package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"RiskLens/internal/domain/models"
)

// Data sources understood by the series loader.
const (
	SourceCSV        = "csv"
	SourceClickHouse = "clickhouse"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps" default:"5" validate:"gt=0"`
			Burst int     `yaml:"burst" default:"10" validate:"gte=1"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logger struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stderr"`
		TimeFormat string `yaml:"time_format" default:"2006-01-02T15:04:05Z07:00"`
		// Collect forwards aggregated error logs to Kafka.
		Collect         bool          `yaml:"collect"`
		CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
		CollectMax      int           `yaml:"collect_max" default:"100"`
	} `yaml:"logger"`
	Risk models.RiskConfig `yaml:"risk"`
	Data struct {
		Source   string        `yaml:"source" default:"csv" validate:"oneof=csv clickhouse"`
		CSVDir   string        `yaml:"csv_dir" default:"./data"`
		Interval string        `yaml:"interval" default:"1d" validate:"oneof=1h 1d 1w"`
		Bars     int           `yaml:"bars" default:"5000" validate:"gte=1"`
		CacheTTL time.Duration `yaml:"cache_ttl" default:"10m"`
	} `yaml:"data"`
	Suite struct {
		Symbols     []string      `yaml:"symbols" default:"[\"BTC-USD\",\"ETH-USD\",\"GC=F\",\"SPY\",\"BHP.AX\"]"`
		Concurrency int           `yaml:"concurrency" default:"4" validate:"gte=1"`
		Timeout     time.Duration `yaml:"timeout" default:"10m"`
	} `yaml:"suite"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"risklens"`
		Table            string        `yaml:"table" default:"price_bars"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"risklens"`
		// MemorySize bounds the in-process layer in front of Redis.
		MemorySize int `yaml:"memory_size" default:"256"`
	} `yaml:"redis"`
	// Queue runs risk requests asynchronously on Redis lists; requires redis.enabled.
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
		RetryLimit int           `yaml:"retry_limit" default:"3" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
		Poll       time.Duration `yaml:"poll" default:"1s"`
		StatusTTL  time.Duration `yaml:"status_ttl" default:"24h"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Topics       struct {
			Requests string `yaml:"requests" default:"risklens.requests"`
			Reports  string `yaml:"reports" default:"risklens.reports"`
			Logs     string `yaml:"logs" default:"risklens.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"risklens"`
			Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"risklens.requests.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	// Stream ingests live trades into bars of Interval and stores them.
	Stream struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url" default:"wss://ws.finnhub.io"`
		Token          string        `yaml:"token"`
		Symbols        []string      `yaml:"symbols"`
		Interval       string        `yaml:"interval" default:"1d" validate:"oneof=1h 1d 1w"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		BufferSize     int           `yaml:"buffer_size" default:"256" validate:"gte=1"`
		// Rescore runs an analysis after every stored bar.
		Rescore bool `yaml:"rescore"`
	} `yaml:"stream"`
	Interpreter struct {
		// APIKey enables the external interpreter; without it only rules are used.
		APIKey     string        `yaml:"api_key"`
		BaseURL    string        `yaml:"base_url" default:"https://api.openai.com/v1"`
		Model      string        `yaml:"model" default:"gpt-4o-mini"`
		Timeout    time.Duration `yaml:"timeout" default:"30s"`
		MaxRetries int           `yaml:"max_retries" default:"2" validate:"gte=0"`
	} `yaml:"interpreter"`
}

var validate = validator.New()

// Default returns a configuration built from struct defaults only.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML (or defaults when path is empty), a
// .env file if present, and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	applyEnv(c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func applyEnv(c *Config) {
	// Override with environment variables
	if v := os.Getenv("RISKLENS_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("RISKLENS_DATA_SOURCE"); v != "" {
		c.Data.Source = v
	}
	if v := os.Getenv("RISKLENS_CSV_DIR"); v != "" {
		c.Data.CSVDir = v
	}
	if v := os.Getenv("RISKLENS_INTERPRETER_API_KEY"); v != "" {
		c.Interpreter.APIKey = v
	}
	if v := os.Getenv("RISKLENS_INTERPRETER_BASE_URL"); v != "" {
		c.Interpreter.BaseURL = v
	}
	if v := os.Getenv("RISKLENS_STREAM_TOKEN"); v != "" {
		c.Stream.Token = v
	}
	if v := os.Getenv("RISKLENS_CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("RISKLENS_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("RISKLENS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Suite.Symbols = strings.Split(v, ",")
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if c.Data.Source == SourceCSV && c.Data.CSVDir == "" {
		return fmt.Errorf("data.csv_dir is required for the csv source")
	}
	if c.Data.Source == SourceClickHouse && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for the clickhouse source")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Stream.Enabled && len(c.Stream.Symbols) == 0 {
		return fmt.Errorf("stream.symbols cannot be empty when stream is enabled")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue.enabled requires redis.enabled")
	}
	if len(c.Suite.Symbols) == 0 {
		return fmt.Errorf("suite.symbols cannot be empty")
	}
	return nil
}
