package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppPort string

	DBDriver   string
	SQLitePath string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	UploadDir string

	LogLevel  string
	LogFormat string

	SiteTheme  string
	BackendURL string

	AdminEmails []string
	AuthHeader  string

	SubmitRatePerMin   int
	ValidateRatePerMin int

	// TrustedProxies lists the CIDRs (or single IPs) allowed to set
	// X-Forwarded-For. Empty means the peer address is the client.
	TrustedProxies []string

	AWSRegion      string
	NotifyFrom     string
	NotifyTopicARN string

	AnalyticsCacheSecs int
}

var defaults = map[string]any{
	"APP_PORT":                "8080",
	"DB_DRIVER":               "mysql",
	"SQLITE_PATH":             "accelerator.db",
	"MYSQL_HOST":              "mysql",
	"MYSQL_PORT":              "3306",
	"MYSQL_DB":                "accelerator",
	"MYSQL_USER":              "accelerator",
	"MYSQL_PASS":              "accelerator",
	"REDIS_ADDR":              "redis:6379",
	"REDIS_DB":                0,
	"IDEMPOTENCY_TTL_SECONDS": 300,
	"UPLOAD_DIR":              "uploads",
	"LOG_LEVEL":               "info",
	"LOG_FORMAT":              "json",
	"SITE_THEME":              "light",
	"BACKEND_URL":             "",
	"ADMIN_EMAILS":            "",
	"AUTH_HEADER":             "X-Auth-Request-Email",
	"SUBMIT_RATE_PER_MIN":     10,
	"VALIDATE_RATE_PER_MIN":   120,
	"TRUSTED_PROXIES":         "",
	"AWS_REGION":              "",
	"NOTIFY_FROM_EMAIL":       "",
	"NOTIFY_TOPIC_ARN":        "",
	"ANALYTICS_CACHE_SECONDS": 60,
}

// Load reads .env (when present) and the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// a missing file is fine; real env wins over .env
		_ = godotenv.Load(f)
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		AppPort:            v.GetString("APP_PORT"),
		DBDriver:           strings.ToLower(v.GetString("DB_DRIVER")),
		SQLitePath:         v.GetString("SQLITE_PATH"),
		MySQLHost:          v.GetString("MYSQL_HOST"),
		MySQLPort:          v.GetString("MYSQL_PORT"),
		MySQLDB:            v.GetString("MYSQL_DB"),
		MySQLUser:          v.GetString("MYSQL_USER"),
		MySQLPass:          v.GetString("MYSQL_PASS"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisDB:            v.GetInt("REDIS_DB"),
		IdempTTLSecs:       v.GetInt("IDEMPOTENCY_TTL_SECONDS"),
		UploadDir:          v.GetString("UPLOAD_DIR"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		SiteTheme:          strings.ToLower(v.GetString("SITE_THEME")),
		BackendURL:         strings.TrimRight(v.GetString("BACKEND_URL"), "/"),
		AdminEmails:        splitList(v.GetString("ADMIN_EMAILS")),
		AuthHeader:         v.GetString("AUTH_HEADER"),
		SubmitRatePerMin:   v.GetInt("SUBMIT_RATE_PER_MIN"),
		ValidateRatePerMin: v.GetInt("VALIDATE_RATE_PER_MIN"),
		TrustedProxies:     splitList(v.GetString("TRUSTED_PROXIES")),
		AWSRegion:          v.GetString("AWS_REGION"),
		NotifyFrom:         v.GetString("NOTIFY_FROM_EMAIL"),
		NotifyTopicARN:     v.GetString("NOTIFY_TOPIC_ARN"),
		AnalyticsCacheSecs: v.GetInt("ANALYTICS_CACHE_SECONDS"),
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql":
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.UploadDir == "" {
		return errors.New("missing UPLOAD_DIR")
	}
	if c.SiteTheme != "light" && c.SiteTheme != "dark" {
		return fmt.Errorf("invalid SITE_THEME %q", c.SiteTheme)
	}
	if c.AuthHeader == "" {
		return errors.New("missing AUTH_HEADER")
	}
	if c.SubmitRatePerMin < 1 {
		return fmt.Errorf("SUBMIT_RATE_PER_MIN must be positive, got %d", c.SubmitRatePerMin)
	}
	if c.ValidateRatePerMin < 1 {
		return fmt.Errorf("VALIDATE_RATE_PER_MIN must be positive, got %d", c.ValidateRatePerMin)
	}
	if _, err := c.TrustedProxyNets(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyNets parses TRUSTED_PROXIES; a bare IP becomes a single-host range.
func (c *Config) TrustedProxyNets() ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, raw := range c.TrustedProxies {
		if ip := net.ParseIP(raw); ip != nil {
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", raw, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempTTLSecs) * time.Second
}

func (c *Config) AnalyticsCacheTTL() time.Duration {
	return time.Duration(c.AnalyticsCacheSecs) * time.Second
}

// NotifyEnabled reports whether AWS notifications are configured.
func (c *Config) NotifyEnabled() bool {
	return c.AWSRegion != "" && (c.NotifyFrom != "" || c.NotifyTopicARN != "")
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return c.MySQLDSN()
}
