// Package config loads the routing engine's configuration, layering
// YAML defaults, a .env file, and environment overrides, in that
// order of increasing priority — the same three-tier loading order as
// the teacher's (dex-aggregator) config/config.go Init, generalized
// from that file's exchange/performance table to the full §6
// configuration surface.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the routing engine's full runtime configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Routing  RoutingConfig  `yaml:"routing"`
	Gas      GasConfig      `yaml:"gas"`
	Cache    CacheConfig    `yaml:"cache"`
	Graph    GraphConfig    `yaml:"graph"`
}

type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout"`
	MetricsPort  string `yaml:"metrics_port"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	Enabled  bool   `yaml:"enabled"`
}

// RoutingConfig covers §6's pathfinding and split-optimization knobs.
type RoutingConfig struct {
	MaxHopsDefault         int           `yaml:"max_hops_default"`
	MaxHopsLimit           int           `yaml:"max_hops_limit"`
	MaxSplitsDefault       int           `yaml:"max_splits_default"`
	MaxSplitsLimit         int           `yaml:"max_splits_limit"`
	PathEnumerationCap     int           `yaml:"path_enumeration_cap"`
	MinSplitFraction       float64       `yaml:"min_split_fraction"`
	MaxSlippageBps         int           `yaml:"max_slippage_bps"`
	RequestDeadline        time.Duration `yaml:"request_deadline_ms"`
	ParallelEvalThreshold  int           `yaml:"parallel_eval_threshold"`
}

// GasConfig covers the simulator's gas model constants (§4.2, §6).
type GasConfig struct {
	BaseGasPerHop     uint64 `yaml:"base_gas_per_hop"`
	GasPerTickCrossed uint64 `yaml:"gas_per_tick_crossed"`
}

// CacheConfig covers the quote cache's TTL/LRU/bucketing knobs (§4.7, §6).
type CacheConfig struct {
	TTLSeconds          int   `yaml:"ttl_seconds"`
	Capacity            int   `yaml:"capacity"`
	AmountBucketGranularity int64 `yaml:"amount_bucket_granularity"`
}

// GraphConfig covers pool-graph staleness detection (§6).
type GraphConfig struct {
	StalenessThresholdSeconds int64 `yaml:"staleness_threshold_seconds"`
}

// AppConfig is the process-wide configuration singleton, populated by
// Init the same way the teacher's package-level AppConfig is.
var AppConfig *Config

// loadConfigFromFile loads default configuration from a YAML file. A
// missing file is not an error: env vars and hard-coded fallbacks
// carry the config, matching the teacher's "warn, don't fail" policy.
func loadConfigFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("config: no YAML file at %s, using env vars and defaults", path)
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return err
	}
	log.Printf("config: loaded defaults from %s", path)
	return nil
}

// Init populates AppConfig from config/config.yaml, then .env, then
// the process environment, each layer overriding the previous.
func Init() error {
	AppConfig = &Config{}

	if err := loadConfigFromFile("config/config.yaml", AppConfig); err != nil {
		log.Printf("config: failed to load config.yaml: %v, using defaults", err)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file found, using environment variables")
	}

	AppConfig.Server.Port = getEnv("SERVER_PORT", AppConfig.Server.Port, "8080")
	AppConfig.Server.ReadTimeout = getEnvAsInt("SERVER_READ_TIMEOUT", AppConfig.Server.ReadTimeout, 15)
	AppConfig.Server.WriteTimeout = getEnvAsInt("SERVER_WRITE_TIMEOUT", AppConfig.Server.WriteTimeout, 15)
	AppConfig.Server.MetricsPort = getEnv("METRICS_PORT", AppConfig.Server.MetricsPort, "9090")

	AppConfig.Redis.Addr = getEnv("REDIS_ADDR", AppConfig.Redis.Addr, "localhost:6379")
	AppConfig.Redis.Password = getEnv("REDIS_PASSWORD", AppConfig.Redis.Password, "")
	AppConfig.Redis.DB = getEnvAsInt("REDIS_DB", AppConfig.Redis.DB, 0)
	AppConfig.Redis.Channel = getEnv("REDIS_CHANNEL", AppConfig.Redis.Channel, "routing-engine:pool-snapshots")
	AppConfig.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", AppConfig.Redis.Enabled, false)

	AppConfig.Routing.MaxHopsDefault = getEnvAsInt("MAX_HOPS_DEFAULT", AppConfig.Routing.MaxHopsDefault, 3)
	AppConfig.Routing.MaxHopsLimit = getEnvAsInt("MAX_HOPS_LIMIT", AppConfig.Routing.MaxHopsLimit, 4)
	AppConfig.Routing.MaxSplitsDefault = getEnvAsInt("MAX_SPLITS_DEFAULT", AppConfig.Routing.MaxSplitsDefault, 1)
	AppConfig.Routing.MaxSplitsLimit = getEnvAsInt("MAX_SPLITS_LIMIT", AppConfig.Routing.MaxSplitsLimit, 3)
	AppConfig.Routing.PathEnumerationCap = getEnvAsInt("PATH_ENUMERATION_CAP", AppConfig.Routing.PathEnumerationCap, 64)
	AppConfig.Routing.MinSplitFraction = getEnvAsFloat("MIN_SPLIT_FRACTION", AppConfig.Routing.MinSplitFraction, 0.01)
	AppConfig.Routing.MaxSlippageBps = getEnvAsInt("MAX_SLIPPAGE_BPS", AppConfig.Routing.MaxSlippageBps, 5000)
	AppConfig.Routing.RequestDeadline = time.Duration(getEnvAsInt("REQUEST_DEADLINE_MS", int(AppConfig.Routing.RequestDeadline.Milliseconds()), 2000)) * time.Millisecond
	AppConfig.Routing.ParallelEvalThreshold = getEnvAsInt("PARALLEL_EVAL_THRESHOLD", AppConfig.Routing.ParallelEvalThreshold, 4)

	AppConfig.Gas.BaseGasPerHop = uint64(getEnvAsInt("BASE_GAS_PER_HOP", int(AppConfig.Gas.BaseGasPerHop), 80_000))
	AppConfig.Gas.GasPerTickCrossed = uint64(getEnvAsInt("GAS_PER_TICK_CROSSED", int(AppConfig.Gas.GasPerTickCrossed), 20_000))

	AppConfig.Cache.TTLSeconds = getEnvAsInt("CACHE_TTL_SECONDS", AppConfig.Cache.TTLSeconds, 15)
	AppConfig.Cache.Capacity = getEnvAsInt("CACHE_CAPACITY", AppConfig.Cache.Capacity, 1000)
	AppConfig.Cache.AmountBucketGranularity = getEnvAsInt64("AMOUNT_BUCKET_GRANULARITY", AppConfig.Cache.AmountBucketGranularity, 1_000_000)

	AppConfig.Graph.StalenessThresholdSeconds = getEnvAsInt64("STALENESS_THRESHOLD_SECONDS", AppConfig.Graph.StalenessThresholdSeconds, 120)

	return nil
}

func getEnv(key string, yamlValue string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if yamlValue != "" {
		return yamlValue
	}
	return fallback
}

func getEnvAsInt(key string, yamlValue int, fallback int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	if yamlValue != 0 {
		return yamlValue
	}
	return fallback
}

func getEnvAsInt64(key string, yamlValue int64, fallback int64) int64 {
	if value, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return value
	}
	if yamlValue != 0 {
		return yamlValue
	}
	return fallback
}

func getEnvAsFloat(key string, yamlValue float64, fallback float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	if yamlValue != 0.0 {
		return yamlValue
	}
	return fallback
}

func getEnvAsBool(key string, yamlValue bool, fallback bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	if yamlValue {
		return yamlValue
	}
	return fallback
}
