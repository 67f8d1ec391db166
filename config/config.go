package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	postgres_wrapper "github.com/joripage/makerbot/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/makerbot/pkg/infra/redis"
	"github.com/joripage/makerbot/pkg/venue/paper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when neither --config nor CONFIG_FILE is given.
const DefaultFile = "config.yaml"

type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	Topic           string   `yaml:"topic"`
	GroupID         string   `yaml:"group_id"`
	BatchSize       int      `yaml:"batch_size"`
	FlushIntervalMs int      `yaml:"flush_interval_ms"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject"`
	Durable string `yaml:"durable"`
}

type AppConfig struct {
	ServiceName string                           `yaml:"service_name"`
	Paper       *paper.Config                    `yaml:"paper"`
	JournalDB   *postgres_wrapper.PostgresConfig `yaml:"journal_db"`
	Redis       *redis_wrapper.RedisConfig       `yaml:"redis"`
	Kafka       *KafkaConfig                     `yaml:"kafka"`
	NATS        *NATSConfig                      `yaml:"nats"`
	MetricsAddr string                           `yaml:"metrics_addr"`

	Defaults map[string]yaml.Node            `yaml:"defaults"`
	Markets  map[string]map[string]yaml.Node `yaml:"markets"`

	// Settings is filled by Load when a market is given.
	Settings Settings `yaml:"-"`
}

// Load load config from file and environment variables. When market is not
// empty its settings are resolved and validated into Settings.
func Load(filePath, market string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}
	if len(filePath) == 0 {
		filePath = DefaultFile
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, &ConfigError{Key: filePath, Err: err}
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, &ConfigError{Key: filePath, Err: err}
	}

	if cfg.Paper == nil {
		def := paper.DefaultConfig()
		cfg.Paper = &def
	}

	if market != "" {
		cfg.Settings, err = resolveSettings(cfg.Defaults, cfg.Markets, market)
		if err != nil {
			sugar.Errorf("Failed to resolve settings for %s: %v", market, err)
			return nil, err
		}
	}

	zap.S().Debugf("config: %+v", cfg.Settings)

	return cfg, nil
}

// Credentials are the venue login, read from the environment.
type Credentials struct {
	Login  string
	Secret string
}

// LoadCredentials reads MAKERBOT_LOGIN and MAKERBOT_SECRET, loading envFile
// first when it exists. Variables already set win over the file.
func LoadCredentials(envFile string) (Credentials, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, &ConfigError{Key: envFile, Err: err}
		}
	}
	c := Credentials{Login: os.Getenv("MAKERBOT_LOGIN"), Secret: os.Getenv("MAKERBOT_SECRET")}
	if c.Login == "" {
		return c, &ConfigError{Key: "MAKERBOT_LOGIN", Err: errMissing}
	}
	if c.Secret == "" {
		return c, &ConfigError{Key: "MAKERBOT_SECRET", Err: errMissing}
	}
	return c, nil
}
