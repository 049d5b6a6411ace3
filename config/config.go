package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	aws_pkg "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/pkg/aws"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"

	GatewayLive    = "live"
	GatewaySandbox = "sandbox"

	EventsSNS   = "sns"
	EventsKafka = "kafka"
	EventsNone  = "none"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Redis   RedisConfig
	Gateway GatewayConfig
	Auth    AuthConfig
	HTTP    HTTPConfig
	AWS     AWSConfig
	Events  EventsConfig
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Env             string        `env:"APP_ENV" envDefault:"development"`
	GinMode         string        `env:"GIN_MODE" envDefault:"release"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type StoreConfig struct {
	Driver           string `env:"STORE_DRIVER" envDefault:"mongo"`
	MongoURL         string `env:"MONGO_URL"`
	MongoDB          string `env:"MONGO_DB" envDefault:"storefront"`
	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresDB       string `env:"POSTGRES_DB"`
	PostgresHost     string `env:"POSTGRES_HOST"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresTimeZone string `env:"POSTGRES_TIMEZONE" envDefault:"Asia/Kolkata"`
}

// PostgresDSN returns the gorm postgres DSN.
func (s StoreConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		s.PostgresHost, s.PostgresUser, s.PostgresPassword, s.PostgresDB, s.PostgresPort, s.PostgresSSLMode, s.PostgresTimeZone)
}

type RedisConfig struct {
	URL            string        `env:"REDIS_URL"`
	CacheTTL       time.Duration `env:"CACHE_TTL" envDefault:"10m"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
}

type GatewayConfig struct {
	Mode          string        `env:"GATEWAY_MODE" envDefault:"sandbox"`
	BaseURL       string        `env:"GATEWAY_BASE_URL" envDefault:"https://api.razorpay.com"`
	KeyID         string        `env:"GATEWAY_KEY_ID"`
	KeySecret     string        `env:"GATEWAY_KEY_SECRET"`
	WebhookSecret string        `env:"GATEWAY_WEBHOOK_SECRET"`
	Timeout       time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	Currency      string        `env:"GATEWAY_CURRENCY" envDefault:"INR"`
	SecretName    string        `env:"GATEWAY_SECRET_NAME" envDefault:"storefront/PAYMENT_GATEWAY"`
}

type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
	// TrustIdentityHeaders accepts X-User-ID/X-User-Role as-is. Only enable
	// behind a gateway that strips them from client requests.
	TrustIdentityHeaders bool `env:"TRUST_IDENTITY_HEADERS" envDefault:"false"`
}

type HTTPConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

type AWSConfig struct {
	UseSecrets        bool   `env:"AWS_USE_SECRETS" envDefault:"false"`
	Region            string `env:"AWS_REGION"`
	Endpoint          string `env:"AWS_ENDPOINT"`
	AccessKeyID       string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	DBSecretName      string `env:"DB_SECRET_NAME" envDefault:"storefront/DB_CREDENTIALS"`
	ImageBucket       string `env:"IMAGE_BUCKET"`
	OrderTopicARN     string `env:"ORDER_SNS_TOPIC_ARN"`
	ReconcileQueueURL string `env:"RECONCILE_QUEUE_URL"`
	CloudWatchEnabled bool   `env:"CLOUDWATCH_ENABLED" envDefault:"false"`
	CloudWatchNS      string `env:"CLOUDWATCH_NAMESPACE" envDefault:"Storefront"`
	CloudWatchGroup   string `env:"CLOUDWATCH_LOG_GROUP" envDefault:"/storefront/services"`
}

type EventsConfig struct {
	Driver       string   `env:"EVENTS_DRIVER" envDefault:"none"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"storefront.orders"`
}

// Load reads .env (when present), then the environment, then the Secrets
// Manager overlay when AWS_USE_SECRETS=true.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.AWS.UseSecrets {
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx, cfg.AWS.Region, cfg.AWS.Endpoint, cfg.AWS.Credentials())
		if err != nil {
			return nil, err
		}
		if err := cfg.applySecrets(ctx, aws_pkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySecrets overrides credentials from Secrets Manager. A missing secret
// is not an error; the environment values stay in place.
func (c *Config) applySecrets(ctx context.Context, sm aws_pkg.SecretsGetter) error {
	if m, err := aws_pkg.GetSecretMap(ctx, sm, c.Gateway.SecretName); err == nil {
		override(&c.Gateway.KeyID, m["key_id"])
		override(&c.Gateway.KeySecret, m["key_secret"])
		override(&c.Gateway.WebhookSecret, m["webhook_secret"])
	} else if !isNotFound(err) {
		return fmt.Errorf("load gateway secret: %w", err)
	}

	if m, err := aws_pkg.GetSecretMap(ctx, sm, c.AWS.DBSecretName); err == nil {
		override(&c.Store.PostgresUser, m["POSTGRES_USER"])
		override(&c.Store.PostgresPassword, m["POSTGRES_PASSWORD"])
		override(&c.Store.PostgresDB, m["POSTGRES_DB"])
		override(&c.Store.PostgresHost, m["POSTGRES_HOST"])
		override(&c.Store.PostgresPort, m["POSTGRES_PORT"])
		override(&c.Store.MongoURL, m["MONGO_URL"])
	} else if !isNotFound(err) {
		return fmt.Errorf("load db secret: %w", err)
	}
	return nil
}

// Validate checks the combinations Load cannot express with struct tags.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMongo:
		if c.Store.MongoURL == "" {
			return fmt.Errorf("database config incomplete: MONGO_URL is required")
		}
	case StorePostgres:
		s := c.Store
		if s.PostgresUser == "" || s.PostgresPassword == "" || s.PostgresDB == "" || s.PostgresHost == "" {
			return fmt.Errorf("database config incomplete")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Gateway.Mode {
	case GatewayLive:
		if c.Gateway.KeyID == "" || c.Gateway.KeySecret == "" {
			return fmt.Errorf("gateway config incomplete: GATEWAY_KEY_ID and GATEWAY_KEY_SECRET are required in live mode")
		}
	case GatewaySandbox:
		if c.Gateway.KeySecret == "" {
			return fmt.Errorf("gateway config incomplete: GATEWAY_KEY_SECRET is required to verify signatures")
		}
	default:
		return fmt.Errorf("unknown GATEWAY_MODE %q", c.Gateway.Mode)
	}

	switch c.Events.Driver {
	case EventsNone:
	case EventsSNS:
		if c.AWS.OrderTopicARN == "" {
			return fmt.Errorf("ORDER_SNS_TOPIC_ARN is required when EVENTS_DRIVER=sns")
		}
	case EventsKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_DRIVER=kafka")
		}
	default:
		return fmt.Errorf("unknown EVENTS_DRIVER %q", c.Events.Driver)
	}

	if c.Gateway.Currency == "" {
		return fmt.Errorf("GATEWAY_CURRENCY must not be empty")
	}
	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
	}
	return nil
}

// Credentials returns the static AWS key pair, empty when the default chain
// should be used.
func (a AWSConfig) Credentials() aws_pkg.StaticCredentials {
	return aws_pkg.StaticCredentials{AccessKeyID: a.AccessKeyID, SecretAccessKey: a.SecretAccessKey}
}

// NeedsAWS reports whether any AWS-backed component is enabled.
func (c *Config) NeedsAWS() bool {
	return c.AWS.ImageBucket != "" || c.AWS.ReconcileQueueURL != "" || c.AWS.CloudWatchEnabled || c.Events.Driver == EventsSNS
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func isNotFound(err error) bool {
	var nf *smtypes.ResourceNotFoundException
	return errors.As(err, &nf)
}
