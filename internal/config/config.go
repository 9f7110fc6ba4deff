package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Ledger     Ledger     `mapstructure:"ledger"`
	Logger     Logger     `mapstructure:"logger"`
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Market     Market     `mapstructure:"market"`
	Coach      Coach      `mapstructure:"coach"`
	Journal    Journal    `mapstructure:"journal"`
	Checkpoint Checkpoint `mapstructure:"checkpoint"`
}

// Ledger holds the trading rules of a game.
type Ledger struct {
	InitialCapital float64  `mapstructure:"initial_capital"`
	CommissionRate float64  `mapstructure:"commission_rate"`
	CommissionCap  float64  `mapstructure:"commission_cap"`
	MaxQuantity    int64    `mapstructure:"max_quantity"`
	MaxPrice       float64  `mapstructure:"max_price"`
	MinTradeValue  float64  `mapstructure:"min_trade_value"`
	MaxTradeValue  float64  `mapstructure:"max_trade_value"` // 0 = unbounded
	Policy         string   `mapstructure:"policy"`
	TotalDays      int      `mapstructure:"total_days"`
	DefaultSymbols []string `mapstructure:"default_symbols"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Market holds the configuration for the price source.
type Market struct {
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// SnapshotFile, when set, replaces the HTTP source with a YAML price calendar.
	SnapshotFile string `mapstructure:"snapshot_file"`
}

// Coach holds the configuration for the LLM coaching collaborator.
type Coach struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	MemorySize     int    `mapstructure:"memory_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Journal holds the configuration for the write-ahead transaction journal.
type Journal struct {
	Dir string `mapstructure:"dir"` // empty disables the journal
}

// Checkpoint holds the retry policy for persisting the ledger.
type Checkpoint struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BackoffMS   int `mapstructure:"backoff_ms"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// Output is "stderr", "stdout" or a file path.
	Output string `mapstructure:"output"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ledger.initial_capital", 1000000)
	v.SetDefault("ledger.commission_rate", 0.0003)
	v.SetDefault("ledger.commission_cap", 20)
	v.SetDefault("ledger.max_quantity", 10000)
	v.SetDefault("ledger.max_price", 100000)
	v.SetDefault("ledger.min_trade_value", 0)
	v.SetDefault("ledger.max_trade_value", 0)
	v.SetDefault("ledger.policy", "transactions")
	v.SetDefault("ledger.total_days", 30)
	v.SetDefault("ledger.default_symbols", []string{"RELIANCE", "TCS", "INFY"})

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stderr")

	v.SetDefault("database.dsn", "artha.db")

	v.SetDefault("market.rate_limit", 5)       // requests per second
	v.SetDefault("market.rate_limit_burst", 2) // burst size

	v.SetDefault("coach.enabled", false)
	v.SetDefault("coach.base_url", "http://localhost:11434")
	v.SetDefault("coach.model", "qwen3:8b")
	v.SetDefault("coach.memory_size", 100)
	v.SetDefault("coach.timeout_seconds", 20)

	v.SetDefault("journal.dir", "./wal/journal")

	v.SetDefault("checkpoint.max_attempts", 3)
	v.SetDefault("checkpoint.backoff_ms", 200)

	v.SetDefault("server.port", 8080)
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and environment apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	SetDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
