// Package config resolves mailpurge settings from flags, the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Environment variables consulted when the matching flag is not set.
const (
	EnvCredentials = "MAILPURGE_CREDENTIALS"
	EnvToken       = "MAILPURGE_TOKEN"
	EnvDB          = "MAILPURGE_DB"
	EnvLogLevel    = "MAILPURGE_LOG_LEVEL"
)

// Defaults match the file names Google's quickstarts use.
const (
	DefaultCredentials = "credentials.json"
	DefaultToken       = "token.json"
	DefaultDB          = ".mailpurge/history.db"
	DefaultLogLevel    = "warn"
)

// Config captures everything the CLI needs to run.
type Config struct {
	CredentialsPath string
	TokenPath       string
	DBPath          string
	NoHistory       bool
	NoBrowser       bool
	LogLevel        string
}

// RegisterFlags attaches the shared flags to cmd.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("credentials", DefaultCredentials, "OAuth client secret file (env "+EnvCredentials+")")
	flags.String("token", DefaultToken, "Stored OAuth token file (env "+EnvToken+")")
	flags.String("db", DefaultDB, "Run history database (env "+EnvDB+")")
	flags.Bool("no-history", false, "Do not record runs in the history database")
	flags.Bool("no-browser", false, "Print the consent URL instead of opening a browser")
	flags.String("log-level", DefaultLogLevel, "Logging level: debug, info, warn, error (env "+EnvLogLevel+")")
}

// LoadDotEnv loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load converts the parsed flags into a validated Config. A flag given on the
// command line wins over its environment variable, which wins over the default.
func Load(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	str := func(name, env string) (string, error) {
		v, err := flags.GetString(name)
		if err != nil {
			return "", err
		}
		if !flags.Changed(name) {
			if e := strings.TrimSpace(os.Getenv(env)); e != "" {
				v = e
			}
		}
		return strings.TrimSpace(v), nil
	}

	credentials, err := str("credentials", EnvCredentials)
	if err != nil {
		return Config{}, err
	}
	token, err := str("token", EnvToken)
	if err != nil {
		return Config{}, err
	}
	dbPath, err := str("db", EnvDB)
	if err != nil {
		return Config{}, err
	}
	logLevel, err := str("log-level", EnvLogLevel)
	if err != nil {
		return Config{}, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return Config{}, err
	}
	noBrowser, err := flags.GetBool("no-browser")
	if err != nil {
		return Config{}, err
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		CredentialsPath: filepath.Clean(credentials),
		TokenPath:       filepath.Clean(token),
		NoHistory:       noHistory,
		NoBrowser:       noBrowser,
		LogLevel:        logLevel,
	}
	if dbPath != "" {
		cfg.DBPath = filepath.Clean(dbPath)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.CredentialsPath == "" || cfg.CredentialsPath == "." {
		return fmt.Errorf("--credentials must not be empty")
	}
	if cfg.TokenPath == "" || cfg.TokenPath == "." {
		return fmt.Errorf("--token must not be empty")
	}
	if cfg.TokenPath == cfg.CredentialsPath {
		return fmt.Errorf("--token and --credentials must be different files")
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// HistoryEnabled reports whether runs should be recorded.
func (c Config) HistoryEnabled() bool {
	return !c.NoHistory && c.DBPath != ""
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid --log-level: %s", name)
	}
}
