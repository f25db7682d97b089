package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"
)

// Identity verifier variants.
const (
	VerifierStructural = "structural"
	VerifierHMAC       = "hmac"
	VerifierJWKS       = "jwks"
)

// Backend selectors.
const (
	StorageMinIO = "minio"
	StorageS3    = "s3"

	CatalogPostgres = "postgres"
	CatalogBadger   = "badger"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// StorageConfig holds object storage settings shared by the MinIO and S3 backends.
type StorageConfig struct {
	Backend    string
	Endpoint   string
	Region     string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	PathStyle  bool
	PublicBase string // browser-reachable base URL for stored objects
	PublicRead bool   // apply an anonymous-read bucket policy on startup (MinIO only)
	URLExpiry  time.Duration
}

// CatalogConfig selects and configures the metadata index.
type CatalogConfig struct {
	Backend   string
	Table     string
	BadgerDir string // empty runs Badger in memory
}

// AuthConfig configures the access gate and the identity verifier.
type AuthConfig struct {
	GateEnabled    bool
	APIKey         string
	Verifier       string
	HMACSecret     string
	IdentityRegion string
	UserPoolID     string
	JWKSURL        string
	Issuer         string
	Audience       string
	JWKSCacheTTL   time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppEnv   string
	Port     string
	LogLevel string
	TimeZone string
	Database DatabaseConfig
	Storage  StorageConfig
	Catalog  CatalogConfig
	Auth     AuthConfig

	parseErrs []error // malformed env values, reported by Validate
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	var parseErrs []error
	cfg := &AppConfig{
		AppEnv:   getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		TimeZone: getEnv("APP_TIMEZONE", "UTC"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10, &parseErrs),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5, &parseErrs),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300, &parseErrs),
		},
		Storage: StorageConfig{
			Backend:    getEnv("STORAGE_BACKEND", StorageMinIO),
			Endpoint:   getEnv("STORAGE_ENDPOINT", ""),
			Region:     getEnv("STORAGE_REGION", "us-east-1"),
			AccessKey:  getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:  getEnv("STORAGE_SECRET_KEY", ""),
			Bucket:     getEnv("STORAGE_BUCKET", ""),
			UseSSL:     getEnvBool("STORAGE_USE_SSL", false, &parseErrs),
			PathStyle:  getEnvBool("STORAGE_PATH_STYLE", false, &parseErrs),
			PublicBase: getEnv("STORAGE_PUBLIC_BASE", ""),
			PublicRead: getEnvBool("STORAGE_PUBLIC_READ", false, &parseErrs),
			URLExpiry:  getEnvDuration("UPLOAD_URL_EXPIRY", 15*time.Minute, &parseErrs),
		},
		Catalog: CatalogConfig{
			Backend:   getEnv("CATALOG_BACKEND", CatalogPostgres),
			Table:     getEnv("CATALOG_TABLE", "gallery_images"),
			BadgerDir: getEnv("BADGER_DIR", ""),
		},
		Auth: AuthConfig{
			GateEnabled:    getEnvBool("ACCESS_GATE_ENABLED", true, &parseErrs),
			APIKey:         getEnv("API_KEY", ""),
			Verifier:       getEnv("IDENTITY_VERIFIER", VerifierJWKS),
			HMACSecret:     getEnv("IDENTITY_HMAC_SECRET", ""),
			IdentityRegion: getEnv("IDENTITY_REGION", "us-east-1"),
			UserPoolID:     getEnv("IDENTITY_USER_POOL_ID", ""),
			JWKSURL:        getEnv("IDENTITY_JWKS_URL", ""),
			Issuer:         getEnv("IDENTITY_ISSUER", ""),
			Audience:       getEnv("IDENTITY_AUDIENCE", ""),
			JWKSCacheTTL:   getEnvDuration("IDENTITY_JWKS_CACHE_TTL", time.Hour, &parseErrs),
		},
	}

	// Derive provider endpoints from region + pool when not set explicitly.
	if cfg.Auth.UserPoolID != "" {
		base := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", cfg.Auth.IdentityRegion, cfg.Auth.UserPoolID)
		if cfg.Auth.Issuer == "" {
			cfg.Auth.Issuer = base
		}
		if cfg.Auth.JWKSURL == "" {
			cfg.Auth.JWKSURL = base + "/.well-known/jwks.json"
		}
	}

	cfg.parseErrs = parseErrs
	return cfg
}

// IsProduction returns true when the app is running in production mode.
func (c *AppConfig) IsProduction() bool {
	return c.AppEnv == "production"
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Validate reports configuration that must stop the process at startup.
func (c *AppConfig) Validate() error {
	errs := append([]error(nil), c.parseErrs...)

	if c.Auth.GateEnabled && c.Auth.APIKey == "" {
		errs = append(errs, errors.New("API_KEY is required while the access gate is enabled"))
	}

	switch c.Auth.Verifier {
	case VerifierStructural:
		if c.IsProduction() {
			errs = append(errs, errors.New("structural identity verifier is not allowed in production"))
		}
	case VerifierHMAC:
		if c.Auth.HMACSecret == "" {
			errs = append(errs, errors.New("IDENTITY_HMAC_SECRET is required for the hmac verifier"))
		}
	case VerifierJWKS:
		if c.Auth.JWKSURL == "" {
			errs = append(errs, errors.New("IDENTITY_JWKS_URL or IDENTITY_USER_POOL_ID is required for the jwks verifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown IDENTITY_VERIFIER %q", c.Auth.Verifier))
	}

	if c.Storage.URLExpiry < time.Minute || c.Storage.URLExpiry > time.Hour {
		errs = append(errs, fmt.Errorf("UPLOAD_URL_EXPIRY must be between 1m and 1h, got %s", c.Storage.URLExpiry))
	}
	if c.Storage.Backend != StorageMinIO && c.Storage.Backend != StorageS3 {
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("STORAGE_BUCKET is required"))
	}

	switch c.Catalog.Backend {
	case CatalogPostgres:
		if !identifierRe.MatchString(c.Catalog.Table) {
			errs = append(errs, fmt.Errorf("CATALOG_TABLE %q is not a valid identifier", c.Catalog.Table))
		}
	case CatalogBadger:
		if c.IsProduction() && c.Catalog.BadgerDir == "" {
			errs = append(errs, errors.New("BADGER_DIR is required for the badger catalog in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOG_BACKEND %q", c.Catalog.Backend))
	}

	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvBool, getEnvInt and getEnvDuration keep def when key is unset. A
// value that does not parse also keeps def and is recorded in errs.
func getEnvBool(key string, def bool, errs *[]error) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, v))
			return def
		}
		return b
	}
	return def
}

func getEnvInt(key string, def int, errs *[]error) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
			return def
		}
		return i
	}
	return def
}

func getEnvDuration(key string, def time.Duration, errs *[]error) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
			return def
		}
		return d
	}
	return def
}
