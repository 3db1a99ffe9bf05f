package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppPort string `yaml:"app_port"`
	AppMode string `yaml:"app_mode"`

	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
	LogCompress   bool   `yaml:"log_compress"`

	DBHost         string `yaml:"db_host"`
	DBUser         string `yaml:"db_user"`
	DBPassword     string `yaml:"db_password"`
	DBName         string `yaml:"db_name"`
	DBPort         string `yaml:"db_port"`
	DBSSLMode      string `yaml:"db_sslmode"`
	DBMaxIdleConns int    `yaml:"db_max_idle_conns"`
	DBMaxOpenConns int    `yaml:"db_max_open_conns"`

	JWTSecret    string `yaml:"jwt_secret"`
	JWTExpiryMin int    `yaml:"jwt_expiry_min"`

	RedisHost     string `yaml:"redis_host"`
	RedisPort     string `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// RealtimeBackend is "local" (single instance hub) or "redis" (pub/sub fan-out across instances).
	RealtimeBackend string `yaml:"realtime_backend"`
	// WSAllowedOrigins are browser origins allowed to open /v1/ws besides the API's own host.
	WSAllowedOrigins []string `yaml:"ws_allowed_origins"`

	MessagePageSize    int `yaml:"message_page_size"`
	MessagePageSizeMax int `yaml:"message_page_size_max"`

	SwipeRateLimit       int `yaml:"swipe_rate_limit"`
	SwipeRateWindowSec   int `yaml:"swipe_rate_window_sec"`
	MessageRateLimit     int `yaml:"message_rate_limit"`
	MessageRateWindowSec int `yaml:"message_rate_window_sec"`

	PresenceTTLSec       int    `yaml:"presence_ttl_sec"`
	PresenceCleanupSpec  string `yaml:"presence_cleanup_spec"`
	ReconcileMatchesSpec string `yaml:"reconcile_matches_spec"`
}

func defaults() *Config {
	return &Config{
		AppPort:              "8080",
		AppMode:              "debug",
		LogLevel:             "info",
		LogMaxSizeMB:         100,
		LogMaxBackups:        5,
		LogMaxAgeDays:        30,
		DBHost:               "localhost",
		DBUser:               "postgres",
		DBPassword:           "postgres",
		DBName:               "tutor_match",
		DBPort:               "5432",
		DBSSLMode:            "disable",
		DBMaxIdleConns:       10,
		DBMaxOpenConns:       100,
		JWTSecret:            "change-me",
		JWTExpiryMin:         15,
		RedisHost:            "localhost",
		RedisPort:            "6379",
		RealtimeBackend:      "local",
		MessagePageSize:      50,
		MessagePageSizeMax:   200,
		SwipeRateLimit:       120,
		SwipeRateWindowSec:   60,
		MessageRateLimit:     60,
		MessageRateWindowSec: 60,
		PresenceTTLSec:       300,
		PresenceCleanupSpec:  "@every 1m",
		ReconcileMatchesSpec: "@every 5m",
	}
}

// LoadConfig layers defaults, an optional YAML file and the environment (highest priority).
func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := defaults()
	path := getEnv("CONFIG_FILE", "config.yaml")
	if err := loadYAML(path, cfg); err != nil {
		log.Printf("Config file %s not applied: %v", path, err)
	}
	overrideWithEnv(cfg)
	return cfg
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func overrideWithEnv(cfg *Config) {
	cfg.AppPort = getEnv("APP_PORT", cfg.AppPort)
	cfg.AppMode = getEnv("APP_MODE", cfg.AppMode)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.LogMaxSizeMB = getEnvAsInt("LOG_MAX_SIZE_MB", cfg.LogMaxSizeMB)
	cfg.LogMaxBackups = getEnvAsInt("LOG_MAX_BACKUPS", cfg.LogMaxBackups)
	cfg.LogMaxAgeDays = getEnvAsInt("LOG_MAX_AGE_DAYS", cfg.LogMaxAgeDays)
	cfg.LogCompress = getEnvAsBool("LOG_COMPRESS", cfg.LogCompress)

	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBSSLMode = getEnv("DB_SSLMODE", cfg.DBSSLMode)
	cfg.DBMaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", cfg.DBMaxIdleConns)
	cfg.DBMaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTExpiryMin = getEnvAsInt("JWT_EXPIRY_MIN", cfg.JWTExpiryMin)

	cfg.RedisHost = getEnv("REDIS_HOST", cfg.RedisHost)
	cfg.RedisPort = getEnv("REDIS_PORT", cfg.RedisPort)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvAsInt("REDIS_DB", cfg.RedisDB)

	cfg.RealtimeBackend = getEnv("REALTIME_BACKEND", cfg.RealtimeBackend)
	cfg.WSAllowedOrigins = getEnvAsList("WS_ALLOWED_ORIGINS", cfg.WSAllowedOrigins)

	cfg.MessagePageSize = getEnvAsInt("MESSAGE_PAGE_SIZE", cfg.MessagePageSize)
	cfg.MessagePageSizeMax = getEnvAsInt("MESSAGE_PAGE_SIZE_MAX", cfg.MessagePageSizeMax)

	cfg.SwipeRateLimit = getEnvAsInt("SWIPE_RATE_LIMIT", cfg.SwipeRateLimit)
	cfg.SwipeRateWindowSec = getEnvAsInt("SWIPE_RATE_WINDOW_SEC", cfg.SwipeRateWindowSec)
	cfg.MessageRateLimit = getEnvAsInt("MESSAGE_RATE_LIMIT", cfg.MessageRateLimit)
	cfg.MessageRateWindowSec = getEnvAsInt("MESSAGE_RATE_WINDOW_SEC", cfg.MessageRateWindowSec)

	cfg.PresenceTTLSec = getEnvAsInt("PRESENCE_TTL_SEC", cfg.PresenceTTLSec)
	cfg.PresenceCleanupSpec = getEnv("PRESENCE_CLEANUP_SPEC", cfg.PresenceCleanupSpec)
	cfg.ReconcileMatchesSpec = getEnv("RECONCILE_MATCHES_SPEC", cfg.ReconcileMatchesSpec)
}

// RedisEnabled reports whether a redis host is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma separated value, dropping empty entries.
func getEnvAsList(key string, fallback []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
