package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	SiteName    string `env:"SITE_NAME" envDefault:"Civil Engineering Consultants"`
	DBDriver    string `env:"DB_DRIVER" envDefault:"pgx"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	DBTxTimeout int    `env:"DB_TX_TIMEOUT_SECONDS" envDefault:"15"`

	JWTSecret     string `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"civilsite"`
	TokenTTLHours int    `env:"TOKEN_TTL_HOURS" envDefault:"24"`

	CorsOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	// TrustedProxies lists the addresses or CIDR ranges whose forwarding
	// headers are believed. Empty means the peer address is always the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	LogDir           string `env:"LOG_DIR" envDefault:"storage/logs"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogRetentionDays int    `env:"LOG_RETENTION_DAYS" envDefault:"7"`

	RedisURL        string `env:"REDIS_URL"`
	CachePrefix     string `env:"CACHE_PREFIX" envDefault:"civilsite:"`
	CacheTTLSeconds int    `env:"CACHE_TTL_SECONDS" envDefault:"3600"`

	StorageEndpoint  string `env:"STORAGE_ENDPOINT"`
	StorageAccessKey string `env:"STORAGE_ACCESS_KEY"`
	StorageSecretKey string `env:"STORAGE_SECRET_KEY"`
	StorageBucket    string `env:"STORAGE_BUCKET" envDefault:"site-images"`
	StorageUseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"true"`
	StoragePublicURL string `env:"STORAGE_PUBLIC_URL"`
	MediaDir         string `env:"MEDIA_DIR" envDefault:"storage/media"`
	ImageMaxWidth    int    `env:"IMAGE_MAX_WIDTH" envDefault:"1920"`
	ImageMaxBytes    int64  `env:"IMAGE_MAX_BYTES" envDefault:"10485760"`

	VisitUniqueMode      string `env:"VISIT_UNIQUE_MODE" envDefault:"ip-day"`
	MetricsSampleSeconds int    `env:"METRICS_SAMPLE_INTERVAL" envDefault:"5"`
	MetricsDiskPath      string `env:"METRICS_DISK_PATH" envDefault:"/"`
	LoginRatePerMinute   int    `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`

	SeedFile      string `env:"SEED_FILE"`
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

const (
	VisitModeIPDay  = "ip-day"
	VisitModeLegacy = "legacy"
)

// Load parses the environment. A missing DATABASE_URL or JWT_SECRET is an error.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if cfg.DBDriver != "pgx" && cfg.DBDriver != "sqlite" {
		return Config{}, fmt.Errorf("DB_DRIVER must be pgx or sqlite, got %q", cfg.DBDriver)
	}
	cfg.VisitUniqueMode = strings.ToLower(strings.TrimSpace(cfg.VisitUniqueMode))
	if cfg.VisitUniqueMode != VisitModeIPDay && cfg.VisitUniqueMode != VisitModeLegacy {
		return Config{}, fmt.Errorf("VISIT_UNIQUE_MODE must be %s or %s", VisitModeIPDay, VisitModeLegacy)
	}
	if _, err := cfg.TrustedProxyPrefixes(); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTLHours <= 0 {
		cfg.TokenTTLHours = 24
	}
	if cfg.MetricsSampleSeconds <= 0 {
		cfg.MetricsSampleSeconds = 5
	}
	if cfg.LogRetentionDays <= 0 {
		cfg.LogRetentionDays = 7
	}
	return cfg, nil
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c Config) TxTimeout() time.Duration {
	if c.DBTxTimeout <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.DBTxTimeout) * time.Second
}

// StorageEnabled reports whether image uploads can reach the object store.
func (c Config) StorageEnabled() bool {
	return c.StorageEndpoint != "" && c.StorageAccessKey != "" && c.StorageSecretKey != ""
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a single-host prefix.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid range %q", raw)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address %q", raw)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
