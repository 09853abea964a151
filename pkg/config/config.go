package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PaperTradingMode is the only trading mode the execution path may reach.
const PaperTradingMode = "paper"

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Decision pipeline
	Trading    TradingConfig
	Analysis   AnalysisConfig
	Evaluation EvaluationConfig

	// External APIs
	Broker     BrokerConfig
	Collectors CollectorsConfig

	// Reporting
	Brief  BriefConfig
	Notify NotifyConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// TradingConfig holds the risk gate and execution knobs
type TradingConfig struct {
	DryRun         bool    // 기본값 true: 주문 경로를 절대 건드리지 않음
	Mode           string  // must equal PaperTradingMode
	MinSentiment   float64 // 최소 감성 점수
	MaxDailyTrades int     // UTC 하루 최대 실행 건수
	AmountUSD      float64 // 1회 매수 금액
	StatusGrace    time.Duration
	CallTimeout    time.Duration
}

// AnalysisConfig holds the text-analysis capability configuration
type AnalysisConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	BatchSize   int
	Timeout     time.Duration
	MaxAttempts int
	Concurrency int
	RateLimit   int // requests per minute, 0 = unlimited
}

// EvaluationConfig holds outcome evaluator settings
type EvaluationConfig struct {
	Benchmark   string
	Buffer      time.Duration
	BatchLimit  int
	CallTimeout time.Duration
	Calendar    string // "broker" or "nyse"
}

// BrokerConfig holds the paper brokerage REST configuration
type BrokerConfig struct {
	KeyID     string
	SecretKey string
	BaseURL   string // trading endpoint
	DataURL   string // market data endpoint
	Feed      string
}

// CollectorsConfig holds collector sources
type CollectorsConfig struct {
	SourcesFile string // optional YAML file overriding the defaults below
	RSSFeeds    []string
	Subreddits  []string
	RedditLimit int
	UserAgent   string
	Keywords    []string
	Timeout     time.Duration
}

// BriefConfig holds markdown output locations
type BriefConfig struct {
	BriefDir string
	NewsDir  string
}

// NotifyConfig holds optional notifier credentials
type NotifyConfig struct {
	TelegramToken  string
	TelegramChatID string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string
	MailTo   string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 5),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Trading: TradingConfig{
			DryRun:         getEnvAsBool("DRY_RUN", true),
			Mode:           getEnv("TRADING_MODE", PaperTradingMode),
			MinSentiment:   getEnvAsFloat("MIN_SENTIMENT", 0.3),
			MaxDailyTrades: getEnvAsInt("MAX_DAILY_TRADES", 1),
			AmountUSD:      getEnvAsFloat("INVEST_AMOUNT_USD", 40),
			StatusGrace:    getEnvAsDuration("ORDER_STATUS_GRACE", "2s"),
			CallTimeout:    getEnvAsDuration("BROKER_CALL_TIMEOUT", "15s"),
		},

		Analysis: AnalysisConfig{
			APIKey:      getEnv("DEEPSEEK_API_KEY", ""),
			BaseURL:     getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com"),
			Model:       getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
			BatchSize:   getEnvAsInt("ANALYSIS_BATCH_SIZE", 15),
			Timeout:     getEnvAsDuration("ANALYSIS_TIMEOUT", "25s"),
			MaxAttempts: getEnvAsInt("ANALYSIS_MAX_ATTEMPTS", 3),
			Concurrency: getEnvAsInt("ANALYSIS_CONCURRENCY", 1),
			RateLimit:   getEnvAsInt("ANALYSIS_RATE_LIMIT", 30),
		},

		Evaluation: EvaluationConfig{
			Benchmark:   getEnv("BENCHMARK_TICKER", "SPY"),
			Buffer:      getEnvAsDuration("EVAL_BUFFER", "48h"),
			BatchLimit:  getEnvAsInt("EVAL_BATCH_LIMIT", 50),
			CallTimeout: getEnvAsDuration("MARKET_DATA_TIMEOUT", "20s"),
			Calendar:    getEnv("EVAL_CALENDAR", "nyse"),
		},

		// External APIs
		Broker: BrokerConfig{
			KeyID:     getEnv("ALPACA_KEY_ID", ""),
			SecretKey: getEnv("ALPACA_SECRET_KEY", ""),
			BaseURL:   getEnv("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
			DataURL:   getEnv("ALPACA_DATA_URL", "https://data.alpaca.markets"),
			Feed:      getEnv("ALPACA_FEED", "iex"),
		},

		Collectors: CollectorsConfig{
			SourcesFile: getEnv("SOURCES_FILE", ""),
			RSSFeeds: getEnvAsList("RSS_FEEDS", []string{
				"yahoo_finance=https://finance.yahoo.com/news/rssindex",
				"cnbc_topnews=https://www.cnbc.com/id/100003114/device/rss/rss.html",
			}),
			Subreddits:  getEnvAsList("REDDIT_SUBREDDITS", []string{"stocks", "investing"}),
			RedditLimit: getEnvAsInt("REDDIT_LIMIT", 50),
			UserAgent:   getEnv("COLLECTOR_USER_AGENT", "newsquant/1.0"),
			Keywords:    getEnvAsList("ALERT_KEYWORDS", nil),
			Timeout:     getEnvAsDuration("COLLECTOR_TIMEOUT", "15s"),
		},

		Brief: BriefConfig{
			BriefDir: getEnv("BRIEF_MD_DIR", filepath.Join("var", "brief")),
			NewsDir:  getEnv("NEWS_MD_DIR", filepath.Join("var", "news")),
		},

		Notify: NotifyConfig{
			TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID: getEnv("TELEGRAM_CHAT_ID", ""),
			SMTPHost:       getEnv("SMTP_HOST", ""),
			SMTPPort:       getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:       getEnv("SMTP_USER", ""),
			SMTPPass:       getEnv("SMTP_PASS", ""),
			MailFrom:       getEnv("MAIL_FROM", getEnv("SMTP_USER", "")),
			MailTo:         getEnv("MAIL_TO", ""),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Trading.MaxDailyTrades < 0 {
		return fmt.Errorf("MAX_DAILY_TRADES must be >= 0")
	}
	if c.Trading.AmountUSD <= 0 {
		return fmt.Errorf("INVEST_AMOUNT_USD must be > 0")
	}
	if c.Analysis.BatchSize < 1 || c.Analysis.BatchSize > 50 {
		return fmt.Errorf("ANALYSIS_BATCH_SIZE must be between 1 and 50")
	}
	if c.Evaluation.Calendar != "nyse" && c.Evaluation.Calendar != "broker" {
		return fmt.Errorf("EVAL_CALENDAR must be one of: nyse, broker")
	}

	return nil
}

// IsPaperMode reports whether the configured trading mode is the sanctioned one
func (t TradingConfig) IsPaperMode() bool {
	return strings.EqualFold(strings.TrimSpace(t.Mode), PaperTradingMode)
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
// LoadEnvFile loads an explicit env file before Load. Variables already set are kept.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}

	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
