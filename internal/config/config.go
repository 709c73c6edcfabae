package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	GoldRushAPIKey  string
	GoldRushBaseURL string
	TxPageSize      int

	NeynarAPIKey   string
	NeynarBaseURL  string
	FollowPageSize int

	Chains []string

	ProviderRate  float64
	ProviderBurst int

	MinUSDValue float64
	MinGasQuote float64

	DBDSN      string
	SQLitePath string
	RedisAddr  string
	CacheTTL   time.Duration

	KafkaBrokers     []string
	KafkaTopicPrefix string

	OtelEndpoint string

	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	goldrushKey, ok := source.Lookup("GOLDRUSH_API_KEY")
	if !ok || strings.TrimSpace(goldrushKey) == "" {
		return Config{}, errors.New("GOLDRUSH_API_KEY is required")
	}
	neynarKey, ok := source.Lookup("NEYNAR_API_KEY")
	if !ok || strings.TrimSpace(neynarKey) == "" {
		return Config{}, errors.New("NEYNAR_API_KEY is required")
	}

	httpAddr := ":8080"
	if raw, ok := source.Lookup("HTTP_ADDR"); ok && raw != "" {
		httpAddr = raw
	}

	goldrushBase, _ := source.Lookup("GOLDRUSH_BASE_URL")
	neynarBase, _ := source.Lookup("NEYNAR_BASE_URL")

	txPageSize, err := parseIntEnv(source, "TX_PAGE_SIZE", 5)
	if err != nil {
		return Config{}, err
	}
	followPageSize, err := parseIntEnv(source, "FOLLOW_PAGE_SIZE", 100)
	if err != nil {
		return Config{}, err
	}

	chains, err := parseList(source, "CHAINS", "eth-mainnet,monad-testnet")
	if err != nil {
		return Config{}, err
	}

	providerRate, err := parseFloatEnv(source, "PROVIDER_RATE", 4)
	if err != nil {
		return Config{}, err
	}
	providerBurst, err := parseIntEnv(source, "PROVIDER_BURST", 1)
	if err != nil {
		return Config{}, err
	}

	minUSDValue, err := parseFloatEnv(source, "MIN_USD_VALUE", 1)
	if err != nil {
		return Config{}, err
	}
	minGasQuote, err := parseFloatEnv(source, "MIN_GAS_QUOTE", 0.1)
	if err != nil {
		return Config{}, err
	}

	dbDSN, ok := source.Lookup("DB_DSN")
	if !ok || strings.TrimSpace(dbDSN) == "" {
		dbDSN = "root:@tcp(127.0.0.1:3306)/tradefeed?parseTime=true&multiStatements=true"
	}
	sqlitePath, _ := source.Lookup("SQLITE_PATH")

	redisAddr := ""
	if raw, ok := source.Lookup("REDIS_ADDR"); ok {
		redisAddr = strings.TrimSpace(raw)
	}

	cacheTTL := time.Hour
	if raw, ok := source.Lookup("CACHE_TTL"); ok && raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CACHE_TTL: %w", err)
		}
		cacheTTL = duration
	}

	kafkaBrokers := splitList(lookupString(source, "KAFKA_BROKERS", ""))
	kafkaTopicPrefix := lookupString(source, "KAFKA_TOPIC_PREFIX", "tradefeed-trades")

	otelEndpoint := strings.TrimSpace(lookupString(source, "OTEL_EXPORTER_OTLP_ENDPOINT", ""))

	logLevel := lookupString(source, "LOG_LEVEL", "info")
	logFormat := lookupString(source, "LOG_FORMAT", "text")
	logFile := lookupString(source, "LOG_FILE", "")
	logMaxSizeMB, err := parseIntEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseIntEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	return Config{
		HTTPAddr:         httpAddr,
		GoldRushAPIKey:   goldrushKey,
		GoldRushBaseURL:  goldrushBase,
		TxPageSize:       txPageSize,
		NeynarAPIKey:     neynarKey,
		NeynarBaseURL:    neynarBase,
		FollowPageSize:   followPageSize,
		Chains:           chains,
		ProviderRate:     providerRate,
		ProviderBurst:    providerBurst,
		MinUSDValue:      minUSDValue,
		MinGasQuote:      minGasQuote,
		DBDSN:            dbDSN,
		SQLitePath:       sqlitePath,
		RedisAddr:        redisAddr,
		CacheTTL:         cacheTTL,
		KafkaBrokers:     kafkaBrokers,
		KafkaTopicPrefix: kafkaTopicPrefix,
		OtelEndpoint:     otelEndpoint,
		LogLevel:         logLevel,
		LogFormat:        logFormat,
		LogFile:          logFile,
		LogMaxSizeMB:     logMaxSizeMB,
		LogMaxBackups:    logMaxBackups,
	}, nil
}

func lookupString(source EnvSource, key, defaultValue string) string {
	if raw, ok := source.Lookup(key); ok && raw != "" {
		return raw
	}
	return defaultValue
}

func parseIntEnv(source EnvSource, key string, defaultValue int) (int, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseFloatEnv(source EnvSource, key string, defaultValue float64) (float64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseList(source EnvSource, key string, defaultValue string) ([]string, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = defaultValue
	}
	values := splitList(raw)
	if len(values) == 0 {
		return nil, fmt.Errorf("%s is required", key)
	}
	return values, nil
}

func splitList(raw string) []string {
	var values []string
	for _, item := range strings.Split(raw, ",") {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	return values
}
