package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Mailer    MailerConfig
	Queue     QueueConfig
	Reconcile ReconcileConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

// RedisConfig backs the idempotency guard. Leaving REDIS_ADDR unset disables
// dedup entirely; that is a deployment choice, not a failure.
type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	ClaimTTL time.Duration
}

type MailerConfig struct {
	Driver       string // smtp | resend | webhook
	SMTPAddr     string
	SMTPUsername string
	SMTPPassword string
	ResendAPIKey string
	WebhookURL   string
	DefaultFrom  string
	SubjectMax   int
	BodyMax      int
}

type QueueConfig struct {
	Workers     int
	MaxAttempts int
	SendTimeout time.Duration
}

type ReconcileConfig struct {
	Interval time.Duration
}

func LoadAll() (*Config, error) {
	var errs []error

	collect := func(v string, err error) string {
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	collectInt := func(v int, err error) int {
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: collect(requireEnv("POSTGRES_URL")),
		},
		Mailer: MailerConfig{
			Driver:       getEnv("MAILER_DRIVER", "smtp"),
			SMTPAddr:     os.Getenv("SMTP_ADDR"),
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			WebhookURL:   os.Getenv("WEBHOOK_URL"),
			DefaultFrom:  collect(requireEnv("DEFAULT_FROM")),
			SubjectMax:   collectInt(getEnvInt("SUBJECT_MAX", 200)),
			BodyMax:      collectInt(getEnvInt("BODY_MAX", 65536)),
		},
		Queue: QueueConfig{
			Workers:     collectInt(getEnvInt("QUEUE_WORKERS", 10)),
			MaxAttempts: collectInt(getEnvInt("QUEUE_MAX_ATTEMPTS", 3)),
			SendTimeout: time.Duration(collectInt(getEnvInt("SEND_TIMEOUT_SECONDS", 10))) * time.Second,
		},
		Reconcile: ReconcileConfig{
			Interval: time.Duration(collectInt(getEnvInt("RECONCILE_INTERVAL_SECONDS", 300))) * time.Second,
		},
	}

	redisCfg, redisErrs := loadRedisConfig()
	cfg.Redis = redisCfg
	errs = append(errs, redisErrs...)

	errs = append(errs, validate(cfg)...)

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, []error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	var errs []error

	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err)
	}
	ttlSeconds, err := getEnvInt("IDEMPOTENCY_TTL_SECONDS", 3600)
	if err != nil {
		errs = append(errs, err)
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		ClaimTTL: time.Duration(ttlSeconds) * time.Second,
	}, errs
}

func validate(cfg *Config) []error {
	var errs []error

	switch cfg.Mailer.Driver {
	case "smtp":
		if cfg.Mailer.SMTPAddr == "" {
			errs = append(errs, errors.New("SMTP_ADDR is required when MAILER_DRIVER=smtp"))
		}
	case "resend":
		if cfg.Mailer.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required when MAILER_DRIVER=resend"))
		}
	case "webhook":
		if cfg.Mailer.WebhookURL == "" {
			errs = append(errs, errors.New("WEBHOOK_URL is required when MAILER_DRIVER=webhook"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid MAILER_DRIVER: %q", cfg.Mailer.Driver))
	}

	if cfg.Mailer.SubjectMax <= 0 {
		errs = append(errs, errors.New("SUBJECT_MAX must be > 0"))
	}
	if cfg.Mailer.BodyMax <= 0 {
		errs = append(errs, errors.New("BODY_MAX must be > 0"))
	}
	if cfg.Queue.Workers <= 0 {
		errs = append(errs, errors.New("QUEUE_WORKERS must be > 0"))
	}
	if cfg.Queue.MaxAttempts <= 0 {
		errs = append(errs, errors.New("QUEUE_MAX_ATTEMPTS must be > 0"))
	}
	if cfg.Queue.SendTimeout <= 0 {
		errs = append(errs, errors.New("SEND_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Reconcile.Interval <= 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Redis.Enabled && cfg.Redis.ClaimTTL <= 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_TTL_SECONDS must be > 0"))
	}

	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
