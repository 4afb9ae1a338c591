package config

import (
	"log"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type FleetConfig struct {
	Env        string `yaml:"env" env:"APP_ENV" env-default:"production"`
	FleetDB    `yaml:"fleet_db"`
	Redis      `yaml:"redis"`
	Kafka      `yaml:"kafka"`
	HTTP       `yaml:"http"`
	Telegram   `yaml:"telegram"`
	Platform   `yaml:"platform"`
	Reconcile  `yaml:"reconcile"`
	LogConfig  `yaml:"log_config"`
	Migrations `yaml:"migrations"`
}

type FleetDB struct {
	Dsn string `yaml:"dsn" env:"DATABASE_URL"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
}

type HTTP struct {
	Addr string `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
}

type Telegram struct {
	WebhookBaseURL string `yaml:"webhook_base_url" env:"WEBHOOK_BASE_URL"`
}

type Platform struct {
	// CredentialsKey is the hex-encoded AES key for gateway credential columns.
	CredentialsKey    string  `yaml:"credentials_key" env:"CREDENTIALS_KEY"`
	SplitPercent      float64 `yaml:"split_percent" env:"PLATFORM_SPLIT_PERCENT" env-default:"2"`
	CommissionPercent float64 `yaml:"commission_percent" env:"PLATFORM_COMMISSION_PERCENT" env-default:"2"`
	AdminPasswordFile string  `yaml:"admin_password_file" env:"ADMIN_PASSWORD_FILE"`
	MetaTestEventCode string  `yaml:"meta_test_event_code" env:"META_TEST_EVENT_CODE"`
}

type Reconcile struct {
	// DebounceSeconds may be overridden per gateway kind.
	DebounceSeconds map[string]int `yaml:"debounce_seconds"`
	IntervalSeconds int            `yaml:"interval_seconds" env:"RECONCILE_INTERVAL_SECONDS" env-default:"120"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`
}

type Migrations struct {
	Path string `yaml:"path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

func MustLoad() *FleetConfig {
	var cfg FleetConfig

	configPath := os.Getenv("FLEET_CONFIG_PATH")
	if configPath == "" {
		// Pure-env deployments are allowed; the config file is optional.
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("failed to read config from env: %v", err)
		}
		return &cfg
	}

	if _, err := os.Stat(configPath); err != nil {
		log.Fatalf("failed to find config file: %v\n", err)
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	return &cfg
}

// DebounceFor returns the reconciliation debounce for a gateway kind.
func (r Reconcile) DebounceFor(kind string) int {
	if d, ok := r.DebounceSeconds[kind]; ok {
		return d
	}
	return 300
}
