package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Detection DetectionConfig `mapstructure:"detection"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	SecretKey   string `mapstructure:"secret_key"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DetectionConfig centralizes every tunable threshold of the scoring engine
// so operational tuning never requires a code change.
type DetectionConfig struct {
	BlockThreshold      int            `mapstructure:"block_threshold"`
	SuspiciousThreshold int            `mapstructure:"suspicious_threshold"`
	Weights             WeightsConfig  `mapstructure:"weights"`
	FrequencyWindows    []WindowConfig `mapstructure:"frequency_windows"`
	DatacenterPrefixes  []string       `mapstructure:"datacenter_prefixes"`
}

type WeightsConfig struct {
	UserAgent float64 `mapstructure:"user_agent"`
	Proxy     float64 `mapstructure:"proxy"`
	Behavior  float64 `mapstructure:"behavior"`
	Honeypot  float64 `mapstructure:"honeypot"`
	Frequency float64 `mapstructure:"frequency"`
}

// WindowConfig pairs a trailing window (minutes) with its request threshold.
type WindowConfig struct {
	Minutes   int `mapstructure:"minutes"`
	Threshold int `mapstructure:"threshold"`
}

type RateLimitConfig struct {
	Classes   map[string]LimitConfig `mapstructure:"classes"`
	Endpoints []EndpointLimitConfig  `mapstructure:"endpoints"`
}

type LimitConfig struct {
	Requests int    `mapstructure:"requests"`
	Window   string `mapstructure:"window"`
}

type EndpointLimitConfig struct {
	Pattern  string `mapstructure:"pattern"`
	Requests int    `mapstructure:"requests"`
	Window   string `mapstructure:"window"`
}

type TelemetryConfig struct {
	Exporters []ExporterConfig `mapstructure:"exporters"`
}

type ExporterConfig struct {
	Name     string                 `mapstructure:"name"`
	Settings map[string]interface{} `mapstructure:"settings"`
}

var globalConfig Config

func Load(configPath string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaultValues(&globalConfig)
	return nil
}

func setDefaultValues(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Detection.BlockThreshold == 0 {
		cfg.Detection.BlockThreshold = 90
	}
	if cfg.Detection.SuspiciousThreshold == 0 {
		cfg.Detection.SuspiciousThreshold = 70
	}
	zero := WeightsConfig{}
	if cfg.Detection.Weights == zero {
		cfg.Detection.Weights = WeightsConfig{
			UserAgent: 0.20,
			Proxy:     0.25,
			Behavior:  0.30,
			Honeypot:  0.15,
			Frequency: 0.10,
		}
	}
	if len(cfg.Detection.FrequencyWindows) == 0 {
		cfg.Detection.FrequencyWindows = []WindowConfig{
			{Minutes: 1, Threshold: 10},
			{Minutes: 5, Threshold: 30},
			{Minutes: 15, Threshold: 100},
			{Minutes: 60, Threshold: 200},
		}
	}
}

func GetConfig() *Config {
	return &globalConfig
}
