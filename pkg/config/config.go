package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Razorpay     RazorpayConfig
	Carrier      CarrierConfig
	Payouts      PayoutsConfig
	Refunds      RefundsConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payouts.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VENDORA_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDORA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VENDORA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENDORA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VENDORA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VENDORA_DB_DSN"`
	Driver string `envconfig:"VENDORA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VENDORA_DB_HOST"`
	LegacyPort     int    `envconfig:"VENDORA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VENDORA_DB_USER"`
	LegacyPassword string `envconfig:"VENDORA_DB_PASSWORD"`
	LegacyName     string `envconfig:"VENDORA_DB_NAME"`
	LegacySSLMode  string `envconfig:"VENDORA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDORA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDORA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDORA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDORA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDORA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDORA_REDIS_ADDR"`
	Password     string        `envconfig:"VENDORA_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDORA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDORA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDORA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDORA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDORA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDORA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"VENDORA_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"VENDORA_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"VENDORA_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"VENDORA_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VENDORA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VENDORA_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"VENDORA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VENDORA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"VENDORA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VENDORA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"VENDORA_PUBSUB_ORDERS_TOPIC" required:"true"`
	PaymentsTopic            string `envconfig:"VENDORA_PUBSUB_PAYMENTS_TOPIC" required:"true"`
	PayoutsTopic             string `envconfig:"VENDORA_PUBSUB_PAYOUTS_TOPIC" required:"true"`
	RefundsTopic             string `envconfig:"VENDORA_PUBSUB_REFUNDS_TOPIC" required:"true"`
	RefundsSubscription      string `envconfig:"VENDORA_PUBSUB_REFUNDS_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"VENDORA_PUBSUB_NOTIFICATION_TOPIC" default:"vnd-notification-events"`
	NotificationSubscription string `envconfig:"VENDORA_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"VENDORA_RAZORPAY_KEY_ID" required:"true"`
	KeySecret     string `envconfig:"VENDORA_RAZORPAY_KEY_SECRET" required:"true"`
	WebhookSecret string `envconfig:"VENDORA_RAZORPAY_WEBHOOK_SECRET"`
	Currency      string `envconfig:"VENDORA_RAZORPAY_CURRENCY" default:"INR"`
}

type CarrierConfig struct {
	BaseURL   string        `envconfig:"VENDORA_CARRIER_BASE_URL"`
	APIKey    string        `envconfig:"VENDORA_CARRIER_API_KEY"`
	APISecret string        `envconfig:"VENDORA_CARRIER_API_SECRET"`
	Timeout   time.Duration `envconfig:"VENDORA_CARRIER_TIMEOUT" default:"15s"`
}

type PayoutsConfig struct {
	CommissionRate    string `envconfig:"VENDORA_PAYOUT_COMMISSION_RATE" default:"0.10"`
	MinimumAmount     string `envconfig:"VENDORA_PAYOUT_MINIMUM_AMOUNT" default:"100.00"`
	DelayDays         int    `envconfig:"VENDORA_PAYOUT_DELAY_DAYS" default:"7"`
	PlatformAccountID string `envconfig:"VENDORA_PLATFORM_ACCOUNT_ID" default:"00000000-0000-0000-0000-000000000001"`
}

func (p PayoutsConfig) validate() error {
	if _, err := decimal.NewFromString(p.CommissionRate); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvPayoutCommissionRate, err)
	}
	if _, err := decimal.NewFromString(p.MinimumAmount); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvPayoutMinimumAmount, err)
	}
	if _, err := uuid.Parse(p.PlatformAccountID); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvPlatformAccountID, err)
	}
	return nil
}

// PlatformAccount returns the ledger account that receives commissions and
// funds refunds.
func (p PayoutsConfig) PlatformAccount() uuid.UUID {
	id, err := uuid.Parse(p.PlatformAccountID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Commission returns the platform commission rate as a decimal fraction.
func (p PayoutsConfig) Commission() decimal.Decimal {
	d, err := decimal.NewFromString(p.CommissionRate)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Minimum returns the smallest net amount eligible for a payout.
func (p PayoutsConfig) Minimum() decimal.Decimal {
	d, err := decimal.NewFromString(p.MinimumAmount)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type RefundsConfig struct {
	MaxAttempts  int           `envconfig:"VENDORA_REFUND_MAX_ATTEMPTS" default:"3"`
	RetryBackoff time.Duration `envconfig:"VENDORA_REFUND_RETRY_BACKOFF" default:"1m"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VENDORA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VENDORA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VENDORA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
