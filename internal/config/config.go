package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PluginName prefixes every option key the host stores for us and the
// User-Agent sent to the proctoring API.
const (
	PluginName    = "examity-client"
	PluginVersion = "0.0.1"
)

type Config struct {
	// Examity API
	APIBaseURL   string
	APITimeout   time.Duration
	ClientID     string
	SecretKey    string
	APIDebug     bool
	APIRateLimit float64 // requests per second, 0 = unlimited

	// SSO hand-off
	SSOURL string
	SSOKey string
	SSOIV  string // hex

	// Provisioning
	ProvisionInterval time.Duration
	ProvisionWorkers  int
	ExamWindow        string // "rolling" or "open"

	// Site
	SiteID       int64
	SiteURL      string
	SiteTimezone string

	// WordPress / LearnDash database
	WPDatabaseFile string
	WPTablePrefix  string

	// State (tokens, schedule)
	StateDatabaseFile string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int

	// HTTP surface
	Port       string
	HookSecret string

	// Logging
	Env       string
	LogLevel  string
	LogFormat string

	// Report
	ReportDir      string
	ReportCompress string

	// SFTP
	SFTPHost                  string
	SFTPPort                  int
	SFTPUser                  string
	SFTPPass                  string
	SFTPDir                   string
	SFTPInsecureIgnoreHostKey bool
	SFTPKnownHosts            string
}

// Load reads a .env file when present and then the process environment.
func Load() Config {
	_ = godotenv.Load() // missing .env is fine

	return Config{
		// Examity API
		APIBaseURL:   os.Getenv("EXAMITY_API_URL"),
		APITimeout:   getenvSeconds("EXAMITY_API_TIMEOUT", 0),
		ClientID:     os.Getenv("EXAMITY_CLIENT_ID"),
		SecretKey:    os.Getenv("EXAMITY_SECRET_KEY"),
		APIDebug:     getenvBool("EXAMITY_API_DEBUG", false),
		APIRateLimit: getenvFloat("EXAMITY_API_RATE_LIMIT", 0),

		// SSO hand-off
		SSOURL: os.Getenv("EXAMITY_SSO_URL"),
		SSOKey: os.Getenv("EXAMITY_SSO_KEY"),
		SSOIV:  os.Getenv("EXAMITY_SSO_IV"),

		// Provisioning
		ProvisionInterval: getenvSeconds("EXAMITY_PROVISION_INTERVAL", 43200*time.Second),
		ProvisionWorkers:  getenvInt("EXAMITY_PROVISION_WORKERS", 1),
		ExamWindow:        getenv("EXAMITY_EXAM_WINDOW", "rolling"),

		// Site
		SiteID:       int64(getenvInt("SITE_ID", 1)),
		SiteURL:      strings.TrimRight(os.Getenv("SITE_URL"), "/"),
		SiteTimezone: getenv("SITE_TIMEZONE", "UTC"),

		// WordPress / LearnDash database
		WPDatabaseFile: os.Getenv("WP_DATABASE_FILE"),
		WPTablePrefix:  getenv("WP_TABLE_PREFIX", "wp_"),

		// State
		StateDatabaseFile: getenv("STATE_DATABASE_FILE", "proctor-sync.db"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getenvInt("REDIS_DB", 0),

		// HTTP surface
		Port:       getenv("PORT", "8080"),
		HookSecret: os.Getenv("HOOK_SECRET"),

		// Logging
		Env:       getenv("ENV", "dev"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		// Report
		ReportDir:      os.Getenv("REPORT_DIR"),
		ReportCompress: os.Getenv("REPORT_COMPRESS"),

		// SFTP
		SFTPHost:                  os.Getenv("SFTP_HOST"),
		SFTPPort:                  getenvInt("SFTP_PORT", 22),
		SFTPUser:                  os.Getenv("SFTP_USER"),
		SFTPPass:                  os.Getenv("SFTP_PASS"),
		SFTPDir:                   getenv("SFTP_DIR", "/inbound"),
		SFTPInsecureIgnoreHostKey: getenvBool("SFTP_INSECURE_IGNORE_HOSTKEY", true),
		SFTPKnownHosts:            os.Getenv("SFTP_KNOWN_HOSTS"),
	}
}

// APIConfigured reports whether the remote client can be built at all.
func (c Config) APIConfigured() bool {
	return strings.TrimSpace(c.APIBaseURL) != "" && c.APITimeout > 0
}

// CredentialsConfigured reports whether a token can be requested.
func (c Config) CredentialsConfigured() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.SecretKey) != ""
}

// Location returns the configured site timezone, or the system zone when the
// name is not a valid IANA zone.
func (c Config) Location() *time.Location {
	if c.SiteTimezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.SiteTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// getenvSeconds accepts plain seconds ("30") or a Go duration ("30s").
func getenvSeconds(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, ok := parseSeconds(v); ok {
		return d
	}
	return def
}

func parseSeconds(v string) (time.Duration, bool) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if f < 0 {
			return 0, false
		}
		return time.Duration(f * float64(time.Second)), true
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d, true
	}
	return 0, false
}
