package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                      string
	AllowedOrigin             string
	DatabaseURL               string
	RedisAddr                 string
	RedisPassword             string
	RedisDB                   int
	StoreID                   string
	SuggestionCacheTTLSeconds int
	AuthSecret                string
	AccessTokenTTLMinutes     int
	LogMode                   string
	LogFile                   string
	AMQPURL                   string
	AMQPQueue                 string
	OrderIdleMinutes          int
	StaleOrderSweep           string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:                      getEnv("PORT", "8080"),
		AllowedOrigin:             getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		RedisAddr:                 os.Getenv("REDIS_ADDR"),
		RedisPassword:             os.Getenv("REDIS_PASSWORD"),
		RedisDB:                   redisDB,
		StoreID:                   getEnv("DEFAULT_STORE_ID", "main-store"),
		SuggestionCacheTTLSeconds: getPositiveInt("SUGGESTION_CACHE_TTL_SECONDS", 20),
		AuthSecret:                strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:     getPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		LogMode:                   strings.ToLower(getEnv("LOG_MODE", "production")),
		LogFile:                   strings.TrimSpace(os.Getenv("LOG_FILE")),
		AMQPURL:                   strings.TrimSpace(os.Getenv("AMQP_URL")),
		AMQPQueue:                 getEnv("AMQP_QUEUE", "pos.combo.notifications"),
		OrderIdleMinutes:          getPositiveInt("ORDER_IDLE_MINUTES", 240),
		StaleOrderSweep:           getEnv("STALE_ORDER_SWEEP", "@every 15m"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
