package config

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("RATE_BURST", "not-a-number")

	cfg := Load()
	assert.Equal(t, BackendMySQL, cfg.StoreBackend)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30, cfg.RateBurst)
	assert.False(t, cfg.EnforceStatusTransitions)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ENFORCE_STATUS_TRANSITIONS", "true")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("STORE_BACKEND", BackendMemory)

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.EnforceStatusTransitions)
	assert.Equal(t, 7, cfg.DBMaxOpenConns)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
}

func TestDSN(t *testing.T) {
	cfg := Config{DBUser: "shop", DBPass: "secret", DBHost: "db", DBPort: "3307", DBName: "webshop"}

	parsed, err := mysql.ParseDSN(cfg.DSN())
	require.NoError(t, err)
	assert.Equal(t, "db:3307", parsed.Addr)
	assert.Equal(t, "webshop", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.True(t, parsed.ClientFoundRows)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"k1:9092"}, "orders")
	assert.Equal(t, "orders", w.Topic)
	assert.Equal(t, "k1:9092", w.Addr.String())
}
