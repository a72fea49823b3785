// Package config loads server settings from flags, the environment and an
// optional .env file. Flags win over the environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings.
type Config struct {
	DBPath         string
	Addr           string
	LogPath        string
	AdminEmail     string
	JWTSecret      string
	RedisAddr      string
	RedisPassword  string
	ComplaintLimit int
	UploadMaxBytes int64
	ShutdownGrace  time.Duration
}

// Defaults.
const (
	DefaultDBPath         = "smarthostel.db"
	DefaultAddr           = ":8080"
	DefaultAdminEmail     = "admin@hostel.local"
	DefaultComplaintLimit = 10
	DefaultUploadMaxBytes = 10 << 20
)

// Load reads envFile (if it exists), then the environment, then parses args.
func Load(args []string, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		DBPath:         getEnv("HOSTEL_DB", DefaultDBPath),
		Addr:           getEnv("HOSTEL_ADDR", DefaultAddr),
		LogPath:        getEnv("HOSTEL_LOG", ""),
		AdminEmail:     getEnv("HOSTEL_ADMIN_EMAIL", DefaultAdminEmail),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		ComplaintLimit: getEnv("COMPLAINT_DAILY_LIMIT", DefaultComplaintLimit),
		UploadMaxBytes: getEnv[int64]("HOSTEL_UPLOAD_MAX_BYTES", DefaultUploadMaxBytes),
		ShutdownGrace:  getEnv("HOSTEL_SHUTDOWN_GRACE", 10*time.Second),
	}

	fset := flag.NewFlagSet("smarthostel", flag.ContinueOnError)
	fset.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to SQLite database")
	fset.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fset.StringVar(&cfg.LogPath, "log", cfg.LogPath, "log file path (logs to stdout/stderr if empty)")
	fset.StringVar(&cfg.AdminEmail, "admin-email", cfg.AdminEmail, "email of the bootstrap admin account")
	fset.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "JWT signing secret (generated and stored if empty)")
	fset.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address (rate limiting and push disabled if empty)")
	fset.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "Redis password")
	fset.IntVar(&cfg.ComplaintLimit, "complaint-limit", cfg.ComplaintLimit, "complaints a user may file per 24h")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ComplaintLimit < 1 {
		return nil, fmt.Errorf("complaint limit must be positive, got %d", cfg.ComplaintLimit)
	}
	return cfg, nil
}

// getEnv returns the parsed value of name, or def if unset or unparsable.
func getEnv[T any](name string, def T) T {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return def
	}

	var v any
	var err error
	switch any(def).(type) {
	case string:
		v = raw
	case int:
		v, err = strconv.Atoi(raw)
	case int64:
		v, err = strconv.ParseInt(raw, 10, 64)
	case bool:
		v, err = strconv.ParseBool(raw)
	case time.Duration:
		v, err = time.ParseDuration(raw)
	default:
		return def
	}
	if err != nil {
		return def
	}
	return v.(T)
}
