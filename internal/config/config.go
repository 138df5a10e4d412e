package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type StoreConfig struct {
	// Driver selects the repository binding: memory, postgres or mongo.
	Driver string
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	BucketPhotos string
	UseSSL       bool
	Region       string
	PublicURL    string
}

type SecurityConfig struct {
	JWTSecret string
	JWTTTL    time.Duration
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type ResetConfig struct {
	Stream string
	// URLBase is the reset endpoint the token is appended to in messages.
	URLBase string
}

type JobsConfig struct {
	// PurgeSchedule is a six-field cron spec (with seconds).
	PurgeSchedule string
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Store            StoreConfig
	Postgres         PostgresConfig
	Mongo            MongoConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	RateLimit        RateLimitConfig
	Reset            ResetConfig
	Jobs             JobsConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

// DotenvFile is loaded into the process environment before viper reads it.
// Variables already set win.
const DotenvFile = "config.env"

func Load() (*AppConfig, error) {
	v, err := newViper("config", "NATOURS")
	if err != nil {
		return nil, err
	}
	setDefaults(v)
	if err := v.BindEnv("security.jwtsecret", "NATOURS_SECURITY_JWTSECRET", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("http.port", "NATOURS_HTTP_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg AppConfig
	if err := unmarshal(v, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Security.JWTSecret == "" {
		return errors.New("config: security.jwtsecret is required")
	}
	if c.Environment == "production" && len(c.Security.JWTSecret) < 32 {
		return errors.New("config: security.jwtsecret must be at least 32 characters in production")
	}
	return validateStore(c.Store, c.Postgres, c.Mongo)
}

func validateStore(store StoreConfig, pg PostgresConfig, mongo MongoConfig) error {
	switch store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if pg.DSN == "" {
			return errors.New("config: postgres.dsn is required for the postgres driver")
		}
	case DriverMongo:
		if mongo.URI == "" {
			return errors.New("config: mongo.uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", store.Driver)
	}
	return nil
}

func newViper(name, prefix string) (*viper.Viper, error) {
	if err := godotenv.Load(DotenvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotenvFile, err)
	}

	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}
	return v, nil
}

func unmarshal(v *viper.Viper, out any) error {
	if err := v.Unmarshal(out, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func setSharedDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("logging.level", "debug")

	v.SetDefault("store.driver", DriverMemory)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "natours")
	v.SetDefault("mongo.connecttimeout", "10s")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("reset.stream", "natours:reset-deliveries")
	v.SetDefault("reset.urlbase", "http://127.0.0.1:3000/api/v1/users/resetPassword")
}

func setDefaults(v *viper.Viper) {
	setSharedDefaults(v)

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("storage.endpoint", "127.0.0.1:9000")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucketphotos", "natours-photos")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.publicurl", "")

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtttl", "2160h") // 90 days

	v.SetDefault("ratelimit.requests", 100)
	v.SetDefault("ratelimit.window", "1h")

	v.SetDefault("jobs.purgeschedule", "0 */10 * * * *")

	v.SetDefault("allowcorsorigins", []string{})
}
