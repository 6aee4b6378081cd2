package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the app reads.
	EnvPrefix = "SHOPSPHERE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SHOPSPHERE_DB_DSN"
	EnvDBHost = "SHOPSPHERE_DB_HOST"
	EnvDBUser = "SHOPSPHERE_DB_USER"
	EnvDBName = "SHOPSPHERE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Gateway      GatewayConfig
	Shipping     ShippingConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPSPHERE_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPSPHERE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPSPHERE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPSPHERE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPSPHERE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPSPHERE_DB_DSN"`
	Driver string `envconfig:"SHOPSPHERE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPSPHERE_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPSPHERE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPSPHERE_DB_USER"`
	LegacyPassword string `envconfig:"SHOPSPHERE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPSPHERE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPSPHERE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPSPHERE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPSPHERE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPSPHERE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPSPHERE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPSPHERE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPSPHERE_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPSPHERE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPSPHERE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPSPHERE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPSPHERE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPSPHERE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPSPHERE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPSPHERE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOPSPHERE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOPSPHERE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHOPSPHERE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// GatewayConfig holds credentials for the external payment gateway.
type GatewayConfig struct {
	KeyID     string        `envconfig:"SHOPSPHERE_GATEWAY_KEY_ID"`
	KeySecret string        `envconfig:"SHOPSPHERE_GATEWAY_KEY_SECRET"`
	BaseURL   string        `envconfig:"SHOPSPHERE_GATEWAY_BASE_URL" default:"https://api.razorpay.com"`
	Timeout   time.Duration `envconfig:"SHOPSPHERE_GATEWAY_TIMEOUT" default:"15s"`
}

// ShippingConfig controls the flat shipping charge applied at checkout.
type ShippingConfig struct {
	FlatChargePaise   int `envconfig:"SHOPSPHERE_SHIPPING_FLAT_PAISE" default:"5000"`
	FreeAbovePaise    int `envconfig:"SHOPSPHERE_SHIPPING_FREE_ABOVE_PAISE" default:"100000"`
	MaxItemsPerLine   int `envconfig:"SHOPSPHERE_CART_MAX_QTY_PER_LINE" default:"10"`
	ReturnReasonChars int `envconfig:"SHOPSPHERE_RETURN_REASON_MIN_CHARS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHOPSPHERE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHOPSPHERE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SHOPSPHERE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SHOPSPHERE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SHOPSPHERE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"SHOPSPHERE_PUBSUB_ORDERS_TOPIC" default:"ss-order-events"`
	OrdersSubscription string `envconfig:"SHOPSPHERE_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SHOPSPHERE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SHOPSPHERE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SHOPSPHERE_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
