package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "pharmapos"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PHARMAPOS_DB_DSN"
	EnvDBHost = "PHARMAPOS_DB_HOST"
	EnvDBUser = "PHARMAPOS_DB_USER"
	EnvDBName = "PHARMAPOS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Ledger       LedgerConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"PHARMAPOS_APP_ENV" required:"true"`
	Port         string `envconfig:"PHARMAPOS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PHARMAPOS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PHARMAPOS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PHARMAPOS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PHARMAPOS_DB_DSN"`
	Driver string `envconfig:"PHARMAPOS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PHARMAPOS_DB_HOST"`
	LegacyPort     int    `envconfig:"PHARMAPOS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PHARMAPOS_DB_USER"`
	LegacyPassword string `envconfig:"PHARMAPOS_DB_PASSWORD"`
	LegacyName     string `envconfig:"PHARMAPOS_DB_NAME"`
	LegacySSLMode  string `envconfig:"PHARMAPOS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PHARMAPOS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PHARMAPOS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PHARMAPOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PHARMAPOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PHARMAPOS_REDIS_URL"`
	Address      string        `envconfig:"PHARMAPOS_REDIS_ADDR"`
	Password     string        `envconfig:"PHARMAPOS_REDIS_PASSWORD"`
	DB           int           `envconfig:"PHARMAPOS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PHARMAPOS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PHARMAPOS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PHARMAPOS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PHARMAPOS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PHARMAPOS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PHARMAPOS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PHARMAPOS_JWT_ISSUER" default:"pharmapos"`
	ExpirationMinutes int    `envconfig:"PHARMAPOS_JWT_EXPIRATION_MINUTES" default:"480"`
}

// LedgerConfig tunes the stock ledger policies.
type LedgerConfig struct {
	// ApprovalThreshold is the absolute delta above which a manual
	// adjustment needs a second pair of eyes before it touches stock.
	ApprovalThreshold int `envconfig:"PHARMAPOS_LEDGER_APPROVAL_THRESHOLD" default:"50"`
	// DeltaRetries bounds optimistic-lock retries inside applyDelta.
	DeltaRetries int `envconfig:"PHARMAPOS_LEDGER_DELTA_RETRIES" default:"3"`
	// ReservationTTL is the default hold duration when callers do not set one.
	ReservationTTL time.Duration `envconfig:"PHARMAPOS_LEDGER_RESERVATION_TTL" default:"30m"`
	// ExpiryHorizonDays widens the expiry write-off job window: 0 means only
	// batches already past their expiry date are written off.
	ExpiryHorizonDays int `envconfig:"PHARMAPOS_LEDGER_EXPIRY_HORIZON_DAYS" default:"0"`
	// LowStockThreshold flags batches below this quantity in alert queries.
	LowStockThreshold int `envconfig:"PHARMAPOS_LEDGER_LOW_STOCK_THRESHOLD" default:"10"`
	// SystemActorID attributes scheduled-job writes in the audit trail.
	SystemActorID string `envconfig:"PHARMAPOS_LEDGER_SYSTEM_ACTOR_ID"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PHARMAPOS_CRON_INTERVAL" default:"1h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PHARMAPOS_AUTO_MIGRATE" default:"false"`
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
