package container

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

var ErrInvalidOptions = errors.New("invalid options")

// Options holds the server configuration. Durations are in seconds.
type Options struct {
	Port          int    `default:"8888"    help:"Port to listen on"                                        short:"p"`
	BaseURL       string `default:""        help:"Public base of short links, http://localhost:<port> if empty"`
	CodeLength    int    `default:"8"       help:"Length of generated short codes"                          short:"c"`
	MaxAttempts   int    `default:"5"       help:"Code generation attempts before giving up"`
	DefaultTTL    int    `default:"43200"   help:"Lifetime of a short link created without ttl"`
	MaxTTL        int    `default:"2592000" help:"Longest lifetime a short link may be given"`
	Store         string `default:"memory"  help:"URL store backend: memory or postgres"                    short:"s"`
	DatabaseURL   string `default:""        help:"PostgreSQL connection string"                             short:"d"`
	QueryTimeout  int    `default:"5"       help:"Timeout of a single PostgreSQL query"`
	RedisAddr     string `default:""        help:"Redis server address, empty disables Redis"                short:"r"`
	CacheTTL      int    `default:"3600"    help:"Longest time a short link stays in the Redis cache"`
	SweepInterval int    `default:"60"      help:"Interval between expiry sweeps"`
	SessionTTL    int    `default:"2592000" help:"Session lifetime, 0 for sessions that never expire"`
	SecureCookie  bool   `default:"false"   help:"Set the Secure flag on the session cookie"`
	LogFormat     string `default:"json"    help:"Log format: json or console"`
	LogLevel      string `default:"info"    help:"Log level"`
	RateLimit     bool   `default:"true"    help:"Enable rate limiting"`
}

// Validate rejects options the server cannot run with.
func (o *Options) Validate() error {
	var errs []error

	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidOptions, fmt.Sprintf(format, args...)))
		}
	}

	check(o.Port > 0 && o.Port <= 65535, "port %d out of range", o.Port)
	check(o.CodeLength >= 6 && o.CodeLength <= 10, "code length must be between 6 and 10")
	check(o.MaxAttempts > 0, "max attempts must be positive")
	check(o.MaxTTL > 0, "max ttl must be positive")
	check(o.DefaultTTL > 0 && o.DefaultTTL <= o.MaxTTL, "default ttl must be between 1 and max ttl")
	check(o.Store == StoreMemory || o.Store == StorePostgres, "unknown store %q", o.Store)
	check(o.Store != StorePostgres || o.DatabaseURL != "", "postgres store needs a database url")
	check(o.QueryTimeout > 0, "query timeout must be positive")
	check(o.CacheTTL >= 0, "cache ttl must not be negative")
	check(o.SweepInterval > 0, "sweep interval must be positive")
	check(o.SessionTTL >= 0, "session ttl must not be negative")
	check(o.LogFormat == LogFormatJSON || o.LogFormat == LogFormatConsole, "unknown log format %q", o.LogFormat)

	_, err := zapcore.ParseLevel(o.LogLevel)
	check(err == nil, "unknown log level %q", o.LogLevel)

	return errors.Join(errs...)
}

// PublicBaseURL is the prefix of every short link, without trailing slash.
func (o *Options) PublicBaseURL() string {
	if o.BaseURL == "" {
		return fmt.Sprintf("http://localhost:%d", o.Port)
	}

	return strings.TrimRight(o.BaseURL, "/")
}

func (o *Options) RedisEnabled() bool {
	return o.RedisAddr != ""
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// NewLogger builds a JSON production logger or a console development logger.
func NewLogger(format, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if format == LogFormatConsole {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}
