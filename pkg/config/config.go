package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	Taxonomy  TaxonomyConfig  `mapstructure:"taxonomy"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	UseInMemory  bool   `mapstructure:"use_in_memory"`
	// FallbackPath selects a SQLite file for the degraded store instead of memory.
	FallbackPath string `mapstructure:"fallback_path"`
}

type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

type LedgerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RelayConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

type EstimatorConfig struct {
	MinSamples     int     `mapstructure:"min_samples"`
	ProviderWeight float64 `mapstructure:"provider_weight"`
}

// TaxonomyConfig overrides the built-in category set. Empty lists keep the defaults.
type TaxonomyConfig struct {
	Categories []string        `mapstructure:"categories"`
	Examples   []ExampleConfig `mapstructure:"examples"`
	Keywords   []KeywordConfig `mapstructure:"keywords"`
}

type ExampleConfig struct {
	Description string `mapstructure:"description"`
	Category    string `mapstructure:"category"`
}

type KeywordConfig struct {
	Keyword  string `mapstructure:"keyword"`
	Category string `mapstructure:"category"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DSN renders the lib/pq key=value connection string. Every value is quoted
// so spaces, quotes and backslashes in credentials survive.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSN(c.Host), c.Port, quoteDSN(c.User), quoteDSN(c.Password), quoteDSN(c.DBName), quoteDSN(c.SSLMode))
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quoteDSN(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", u.Port(), err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8001")
	v.SetDefault("server.request_timeout", 60*time.Second)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "categorizer")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("database.fallback_path", "")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 150)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.timeout", 30*time.Second)
	v.SetDefault("openai.max_retries", 0)

	v.SetDefault("ledger.base_url", "http://localhost:8080")
	v.SetDefault("ledger.token", "")
	v.SetDefault("ledger.timeout", 15*time.Second)

	v.SetDefault("relay.threshold", 0.3)

	v.SetDefault("estimator.min_samples", 5)
	v.SetDefault("estimator.provider_weight", 0.6)

	v.SetDefault("log.development", false)
	v.SetDefault("log.level", "info")
}

// LoadConfig reads the YAML file at path (optional) and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable support, openai.api_key <- OPENAI_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		dbConfig.MaxOpenConns = config.Database.MaxOpenConns
		dbConfig.UseInMemory = config.Database.UseInMemory
		dbConfig.FallbackPath = config.Database.FallbackPath
		config.Database = dbConfig
	}

	// Ledger credentials use the names the ledger deployment already exports
	if token := v.GetString("FIREFLY_TOKEN"); token != "" {
		config.Ledger.Token = token
	}
	if apiURL := v.GetString("FIREFLY_API_URL"); apiURL != "" {
		config.Ledger.BaseURL = apiURL
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.Relay.Threshold < 0 || c.Relay.Threshold > 1 {
		return fmt.Errorf("relay.threshold must be within [0,1], got %v", c.Relay.Threshold)
	}
	if c.Estimator.ProviderWeight < 0 || c.Estimator.ProviderWeight > 1 {
		return fmt.Errorf("estimator.provider_weight must be within [0,1], got %v", c.Estimator.ProviderWeight)
	}
	if c.Estimator.MinSamples < 1 {
		return fmt.Errorf("estimator.min_samples must be positive, got %d", c.Estimator.MinSamples)
	}
	if c.OpenAI.Timeout <= 0 {
		return fmt.Errorf("openai.timeout must be positive, got %s", c.OpenAI.Timeout)
	}
	if c.OpenAI.MaxRetries < 0 {
		return fmt.Errorf("openai.max_retries must not be negative, got %d", c.OpenAI.MaxRetries)
	}
	return nil
}
