package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const (
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
)

type Config struct {
	HTTPAddr     string
	StoreBackend string

	DBHost           string
	DBPort           string
	DBUser           string
	DBPass           string
	DBName           string
	DBMaxOpenConns   int
	MigrationRetries int

	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret                string
	EnforceStatusTransitions bool

	RateLimit float64
	RateBurst int
}

// Load reads .env when present, then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		logger.Info().Msg("no .env file found, using process environment")
	}

	return Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8082"),
		StoreBackend: getenv("STORE_BACKEND", BackendMySQL),

		DBHost:           getenv("DB_HOST", "localhost"),
		DBPort:           getenv("DB_PORT", "3306"),
		DBUser:           getenv("DB_USER", "root"),
		DBPass:           getenv("DB_PASS", ""),
		DBName:           getenv("DB_NAME", "webshop"),
		DBMaxOpenConns:   getenvInt("DB_MAX_OPEN_CONNS", 25),
		MigrationRetries: getenvInt("MIGRATION_RETRIES", 3),

		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: getKafkaBrokerURLs(),
		KafkaTopic:   getenv("KAFKA_TOPIC", "order-topic"),

		JWTSecret:                os.Getenv("JWT_SECRET"),
		EnforceStatusTransitions: getenvBool("ENFORCE_STATUS_TRANSITIONS", false),

		RateLimit: getenvFloat("RATE_LIMIT", 10),
		RateBurst: getenvInt("RATE_BURST", 30),
	}
}

// DSN is the go-sql-driver connection string. clientFoundRows makes no-op
// updates report a matched row.
func (c Config) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.DBUser
	cfg.Passwd = c.DBPass
	cfg.Net = "tcp"
	cfg.Addr = c.DBHost + ":" + c.DBPort
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	return cfg.FormatDSN()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().Err(err).Msgf("invalid %s, using %d", key, def)
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn().Err(err).Msgf("invalid %s, using %v", key, def)
		return def
	}
	return f
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn().Err(err).Msgf("invalid %s, using %t", key, def)
		return def
	}
	return b
}
