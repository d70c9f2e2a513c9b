package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PocketOptionConfig PocketOptionConfig `json:"pocket_option"`
	TradingConfig      TradingConfig      `json:"trading"`
	TournamentConfig   TournamentConfig   `json:"tournament"`
	LearningConfig     LearningConfig     `json:"learning"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	ServerConfig       ServerConfig       `json:"server"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// PocketOptionConfig holds venue connection configuration.
// The client runs live only when an SSID is present; otherwise it
// falls back to the simulated feed.
type PocketOptionConfig struct {
	SSID  string `json:"ssid"`
	Demo  bool   `json:"demo"`
	WSUrl string `json:"ws_url"`
}

type TradingConfig struct {
	DefaultAsset     string   `json:"default_asset"`
	DefaultTimeframe int      `json:"default_timeframe"` // seconds
	Assets           []string `json:"assets"`
	MinConfidence    float64  `json:"min_confidence"`
	PayoutRatio      float64  `json:"payout_ratio"`
	CandleWindowSize int      `json:"candle_window_size"`
	ResolveInterval  int      `json:"resolve_interval"` // seconds between resolution sweeps
}

// TournamentConfig controls the automated tournament join task.
type TournamentConfig struct {
	Enabled       bool `json:"enabled"`
	WakeInterval  int  `json:"wake_interval"`  // seconds between loop wakes
	CheckInterval int  `json:"check_interval"` // minimum seconds between join attempts
}

type LearningConfig struct {
	Enabled         bool `json:"enabled"`
	RefreshInterval int  `json:"refresh_interval"` // seconds between knowledge refreshes
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslmode"`
}

// RedisConfig holds Redis configuration for the analysis snapshot cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type ServerConfig struct {
	Port           int    `json:"port"`
	Host           string `json:"host"`
	ProductionMode bool   `json:"production_mode"`
	AllowedOrigins string `json:"allowed_origins"`
	ControlTimeout int    `json:"control_timeout"` // seconds, bounded wait for control calls
}

type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // JSON output instead of console
}

// Load reads config.json if present and applies environment overrides.
// Environment variables take precedence over the file.
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Venue config
	cfg.PocketOptionConfig.SSID = getEnvOrDefault("POCKET_OPTION_SSID", cfg.PocketOptionConfig.SSID)
	cfg.PocketOptionConfig.Demo = getEnvOrDefault("BOT_DEMO", "true") == "true"
	cfg.PocketOptionConfig.WSUrl = getEnvOrDefault("POCKET_OPTION_WS_URL", cfg.PocketOptionConfig.WSUrl)

	// Trading config
	cfg.TradingConfig.DefaultAsset = getEnvOrDefault("TRADING_DEFAULT_ASSET", cfg.TradingConfig.DefaultAsset)
	cfg.TradingConfig.DefaultTimeframe = getEnvIntOrDefault("TRADING_DEFAULT_TIMEFRAME", cfg.TradingConfig.DefaultTimeframe)
	cfg.TradingConfig.MinConfidence = getEnvFloatOrDefault("TRADING_MIN_CONFIDENCE", cfg.TradingConfig.MinConfidence)
	cfg.TradingConfig.PayoutRatio = getEnvFloatOrDefault("TRADING_PAYOUT_RATIO", cfg.TradingConfig.PayoutRatio)

	// Tournament config
	cfg.TournamentConfig.Enabled = getEnvOrDefault("TOURNAMENT_ENABLED", "true") == "true"

	// Learning config
	cfg.LearningConfig.Enabled = getEnvOrDefault("LEARNING_ENABLED", "true") == "true"

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", cfg.RedisConfig.PoolSize)

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION", "true") == "true"
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "false") == "true"
}

func applyDefaults(cfg *Config) {
	if cfg.PocketOptionConfig.WSUrl == "" {
		cfg.PocketOptionConfig.WSUrl = "wss://api.pocketoption.com/socket"
	}
	if cfg.TradingConfig.DefaultAsset == "" {
		cfg.TradingConfig.DefaultAsset = "EURUSD_otc"
	}
	if cfg.TradingConfig.DefaultTimeframe == 0 {
		cfg.TradingConfig.DefaultTimeframe = 60
	}
	if len(cfg.TradingConfig.Assets) == 0 {
		cfg.TradingConfig.Assets = []string{
			"EURUSD_otc", "GBPUSD_otc", "USDJPY_otc", "AUDUSD_otc",
			"EURJPY_otc", "GBPJPY_otc", "EURGBP_otc", "USDCAD_otc",
		}
	}
	if cfg.TradingConfig.MinConfidence == 0 {
		cfg.TradingConfig.MinConfidence = 0.75
	}
	if cfg.TradingConfig.PayoutRatio == 0 {
		cfg.TradingConfig.PayoutRatio = 0.85
	}
	if cfg.TradingConfig.CandleWindowSize == 0 {
		cfg.TradingConfig.CandleWindowSize = 200
	}
	if cfg.TradingConfig.ResolveInterval == 0 {
		cfg.TradingConfig.ResolveInterval = 5
	}
	if cfg.TournamentConfig.WakeInterval == 0 {
		cfg.TournamentConfig.WakeInterval = 3600
	}
	if cfg.TournamentConfig.CheckInterval == 0 {
		cfg.TournamentConfig.CheckInterval = 4 * 3600
	}
	if cfg.LearningConfig.RefreshInterval == 0 {
		cfg.LearningConfig.RefreshInterval = 3600
	}
	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.User == "" {
		cfg.DatabaseConfig.User = "trading_bot"
	}
	if cfg.DatabaseConfig.Database == "" {
		cfg.DatabaseConfig.Database = "trading_bot"
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.PoolSize == 0 {
		cfg.RedisConfig.PoolSize = 10
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 5000
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.ServerConfig.ControlTimeout == 0 {
		cfg.ServerConfig.ControlTimeout = 10
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
}

// Validate checks configuration invariants that would otherwise surface
// deep inside the bot as confusing behavior.
func (c *Config) Validate() error {
	if c.TradingConfig.MinConfidence < 0.5 || c.TradingConfig.MinConfidence > 0.95 {
		return fmt.Errorf("trading.min_confidence must be in [0.5, 0.95], got %.2f", c.TradingConfig.MinConfidence)
	}
	if c.TradingConfig.PayoutRatio <= 0 || c.TradingConfig.PayoutRatio > 1 {
		return fmt.Errorf("trading.payout_ratio must be in (0, 1], got %.2f", c.TradingConfig.PayoutRatio)
	}
	if !ValidTimeframe(c.TradingConfig.DefaultTimeframe) {
		return fmt.Errorf("trading.default_timeframe must be one of %v, got %d", Timeframes, c.TradingConfig.DefaultTimeframe)
	}
	return nil
}

// Timeframes lists the candle intervals (seconds) the venue supports.
var Timeframes = []int{60, 300, 900, 3600}

// ValidTimeframe reports whether tf is a supported candle interval.
func ValidTimeframe(tf int) bool {
	for _, t := range Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}

// ControlTimeout returns the bounded wait applied to control-boundary calls.
func (c *Config) ControlTimeout() time.Duration {
	return time.Duration(c.ServerConfig.ControlTimeout) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
