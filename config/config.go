package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
	Business BusinessConfig
	Auth     AuthConfig
}

// ServerConfig describes this instance. InstanceID tags the events it raises.
type ServerConfig struct {
	Port       string
	Env        string
	Timezone   string
	InstanceID string
}

// DatabaseConfig selects the SQL driver. Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver string
	URL    string
}

// RedisConfig is optional; an empty Addr disables the dashboard cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig is optional; no brokers means sale events stay in-process.
type KafkaConfig struct {
	Brokers       []string
	TopicSales    string
	ConsumerGroup string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
	TracingEnabled bool
}

type BusinessConfig struct {
	OrderNumberStrategy     string
	OrderNumberMaxRetries   int
	StrictStatusTransitions bool
	EventBusAsync           bool
	DashboardCacheTTL       time.Duration
	DashboardRefreshEvery   time.Duration
	TopProductsLimit        int
	RecentOrdersLimit       int
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	Required      bool
	AdminEmail    string
	AdminPassword string
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	maxRetries, _ := strconv.Atoi(getEnv("ORDER_NUMBER_MAX_RETRIES", "5"))
	topProducts, _ := strconv.Atoi(getEnv("DASHBOARD_TOP_PRODUCTS", "5"))
	recentOrders, _ := strconv.Atoi(getEnv("DASHBOARD_RECENT_ORDERS", "10"))

	cfg := &Config{
		Server: ServerConfig{
			Port:       getEnv("PORT", "8080"),
			Env:        getEnv("ENV", "development"),
			Timezone:   getEnv("TZ", ""),
			InstanceID: getEnv("INSTANCE_ID", defaultInstanceID()),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DATABASE_DRIVER", "sqlite"),
			URL:    getEnv("DATABASE_URL", "file:pdv.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "")),
			TopicSales:    getEnv("KAFKA_TOPIC_SALES", "pdv-sales"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "pdv-dashboard-refresh"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			TracingEnabled: getBool("TRACING_ENABLED", false),
		},
		Business: BusinessConfig{
			OrderNumberStrategy:     getEnv("ORDER_NUMBER_STRATEGY", "sequence"),
			OrderNumberMaxRetries:   maxRetries,
			StrictStatusTransitions: getBool("ORDER_STRICT_TRANSITIONS", true),
			EventBusAsync:           getBool("EVENT_BUS_ASYNC", false),
			DashboardCacheTTL:       getDuration("DASHBOARD_CACHE_TTL", 30*time.Second),
			DashboardRefreshEvery:   getDuration("DASHBOARD_REFRESH_INTERVAL", 0),
			TopProductsLimit:        topProducts,
			RecentOrdersLimit:       recentOrders,
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", "change-me"),
			TokenTTL:      getDuration("JWT_TTL", 12*time.Hour),
			Required:      getBool("AUTH_REQUIRED", false),
			AdminEmail:    getEnv("ADMIN_EMAIL", "admin@pdv.local"),
			AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, db=%s", cfg.Server.Env, cfg.Server.Port, cfg.Database.Driver)
	return cfg
}

// Location resolves the calendar timezone used for dashboard boundaries.
func (s ServerConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		log.Printf("Unknown timezone %q, falling back to local: %v", s.Timezone, err)
		return time.Local
	}
	return loc
}

func defaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "pdv"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	val, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultVal)))
	if err != nil {
		return defaultVal
	}
	return val
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Invalid duration for %s=%q, using %s", key, raw, defaultVal)
		return defaultVal
	}
	return d
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
