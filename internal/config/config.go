package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "NIBOG"

type Server struct {
	Port            string `mapstructure:"port"`
	ShutdownTimeout int    `mapstructure:"shutdown-timeout-ms"`
}

type Gateway struct {
	Environment  string `mapstructure:"environment"`
	BaseURL      string `mapstructure:"base-url"`
	MerchantID   string `mapstructure:"merchant-id"`
	SaltKey      string `mapstructure:"salt-key"`
	SaltIndex    string `mapstructure:"salt-index"`
	TimeoutMs    int    `mapstructure:"timeout-ms"`
	PollAttempts int    `mapstructure:"poll-attempts"`
	PollDelayMs  int    `mapstructure:"poll-delay-ms"`
}

type Backend struct {
	BaseURL            string `mapstructure:"base-url"`
	PaymentsPath       string `mapstructure:"payments-path"`
	PendingBookingPath string `mapstructure:"pending-booking-path"`
	CreateBookingPath  string `mapstructure:"create-booking-path"`
	CreatePaymentPath  string `mapstructure:"create-payment-path"`
	TimeoutMs          int    `mapstructure:"timeout-ms"`
}

type WhatsApp struct {
	Enabled          bool   `mapstructure:"enabled"`
	Environment      string `mapstructure:"environment"`
	URL              string `mapstructure:"url"`
	Token            string `mapstructure:"token"`
	TemplateName     string `mapstructure:"template-name"`
	TemplateLanguage string `mapstructure:"template-language"`
	ParamCount       int    `mapstructure:"param-count"`
	TimeoutMs        int    `mapstructure:"timeout-ms"`
	MaxAttempts      int    `mapstructure:"max-attempts"`
	RetryDelayMs     int    `mapstructure:"retry-delay-ms"`
}

type Email struct {
	Enabled      bool   `mapstructure:"enabled"`
	URL          string `mapstructure:"url"`
	APIKey       string `mapstructure:"api-key"`
	From         string `mapstructure:"from"`
	FromName     string `mapstructure:"from-name"`
	ReplyTo      string `mapstructure:"reply-to"`
	SupportEmail string `mapstructure:"support-email"`
	TimeoutMs    int    `mapstructure:"timeout-ms"`
	MaxAttempts  int    `mapstructure:"max-attempts"`
	RetryDelayMs int    `mapstructure:"retry-delay-ms"`
}

type Reconcile struct {
	StatusAttempts    int `mapstructure:"status-attempts"`
	StatusRetryMs     int `mapstructure:"status-retry-ms"`
	ClientRetryBaseMs int `mapstructure:"client-retry-base-ms"`
	ClientRetryMaxMs  int `mapstructure:"client-retry-max-ms"`
	ClientMaxPolls    int `mapstructure:"client-max-polls"`
}

type Callback struct {
	Parallelism  int `mapstructure:"parallelism"`
	ClaimLeaseMs int `mapstructure:"claim-lease-ms"`
}

type Cache struct {
	TTLMs         int    `mapstructure:"ttl-ms"`
	RedisAddr     string `mapstructure:"redis-addr"`
	RedisPassword string `mapstructure:"redis-password"`
	RedisDB       int    `mapstructure:"redis-db"`
}

type Database struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"ssl-mode"`
}

// Enabled reports whether a transaction ledger database is configured.
func (d Database) Enabled() bool { return d.Host != "" }

type KafkaWriter struct {
	BatchSize      int `mapstructure:"batch-size"`
	BatchTimeoutMs int `mapstructure:"batch-timeout-ms"`
}

type Kafka struct {
	Brokers string      `mapstructure:"brokers"`
	Topic   string      `mapstructure:"topic"`
	Writer  KafkaWriter `mapstructure:"writer"`
}

type Metrics struct {
	URL          string `mapstructure:"url"`
	IntervalMs   int    `mapstructure:"interval-ms"`
	CommonLabels string `mapstructure:"common-labels"`
}

type Logs struct {
	URL   string `mapstructure:"url"`
	Level string `mapstructure:"level"`
}

type Config struct {
	Server    Server    `mapstructure:"server"`
	Gateway   Gateway   `mapstructure:"gateway"`
	Backend   Backend   `mapstructure:"backend"`
	WhatsApp  WhatsApp  `mapstructure:"whatsapp"`
	Email     Email     `mapstructure:"email"`
	Reconcile Reconcile `mapstructure:"reconcile"`
	Callback  Callback  `mapstructure:"callback"`
	Cache     Cache     `mapstructure:"cache"`
	Database  Database  `mapstructure:"database"`
	Kafka     Kafka     `mapstructure:"kafka"`
	Metrics   Metrics   `mapstructure:"metrics"`
	Logs      Logs      `mapstructure:"logs"`
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"server.port":                    "8080",
		"server.shutdown-timeout-ms":     10_000,
		"gateway.environment":            "sandbox",
		"gateway.base-url":               "https://api-preprod.phonepe.com/apis/pg-sandbox",
		"gateway.merchant-id":            "",
		"gateway.salt-key":               "",
		"gateway.salt-index":             "1",
		"gateway.timeout-ms":             15_000,
		"gateway.poll-attempts":          5,
		"gateway.poll-delay-ms":          3_000,
		"backend.base-url":               "",
		"backend.payments-path":          "/payments/get-all",
		"backend.pending-booking-path":   "/pending-bookings/get/%s",
		"backend.create-booking-path":    "/bookings/create",
		"backend.create-payment-path":    "/payments/create",
		"backend.timeout-ms":             10_000,
		"whatsapp.enabled":               false,
		"whatsapp.environment":           "",
		"whatsapp.url":                   "",
		"whatsapp.token":                 "",
		"whatsapp.template-name":         "booking_confirmation",
		"whatsapp.template-language":     "en",
		"whatsapp.param-count":           8,
		"whatsapp.timeout-ms":            10_000,
		"whatsapp.max-attempts":          2,
		"whatsapp.retry-delay-ms":        1_000,
		"email.enabled":                  false,
		"email.url":                      "",
		"email.api-key":                  "",
		"email.from":                     "",
		"email.from-name":                "NIBOG",
		"email.reply-to":                 "",
		"email.support-email":            "",
		"email.timeout-ms":               30_000,
		"email.max-attempts":             2,
		"email.retry-delay-ms":           1_000,
		"reconcile.status-attempts":      3,
		"reconcile.status-retry-ms":      1_000,
		"reconcile.client-retry-base-ms": 2_000,
		"reconcile.client-retry-max-ms":  30_000,
		"reconcile.client-max-polls":     6,
		"callback.parallelism":           100,
		"callback.claim-lease-ms":        120_000,
		"cache.ttl-ms":                   30_000,
		"cache.redis-addr":               "",
		"cache.redis-password":           "",
		"cache.redis-db":                 0,
		"database.user":                  "",
		"database.password":              "",
		"database.name":                  "",
		"database.host":                  "",
		"database.port":                  "5432",
		"database.ssl-mode":              "disable",
		"kafka.brokers":                  "",
		"kafka.topic":                    "notification-outcomes",
		"kafka.writer.batch-size":        100,
		"kafka.writer.batch-timeout-ms":  100,
		"metrics.url":                    "",
		"metrics.interval-ms":            10_000,
		"metrics.common-labels":          "",
		"logs.url":                       "",
		"logs.level":                     "info",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// LoadConfig reads config.yaml from path. A missing file is not an error:
// defaults and NIBOG_* environment variables are used instead.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func MustLoadConfig(path string) *Config {
	config, err := LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return config
}

func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
