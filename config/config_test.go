package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("DASHBOARD_CACHE_TTL", "")
	t.Setenv("ORDER_STRICT_TRANSITIONS", "")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.Business.DashboardCacheTTL)
	assert.True(t, cfg.Business.StrictStatusTransitions)
	assert.NotEmpty(t, cfg.Server.InstanceID)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("DASHBOARD_REFRESH_INTERVAL", "1m")
	t.Setenv("JWT_TTL", "not-a-duration")
	t.Setenv("ORDER_STRICT_TRANSITIONS", "false")
	t.Setenv("INSTANCE_ID", "till-7")

	cfg := Load()
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Minute, cfg.Business.DashboardRefreshEvery)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Business.StrictStatusTransitions)
	assert.Equal(t, "till-7", cfg.Server.InstanceID)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.Local, ServerConfig{}.Location())
	assert.Equal(t, time.Local, ServerConfig{Timezone: "Nowhere/City"}.Location())
	assert.Equal(t, "America/Sao_Paulo", ServerConfig{Timezone: "America/Sao_Paulo"}.Location().String())
}
