// Package config loads settings from defaults, a TOML file, the environment
// and command-line flags, in that order of precedence (last wins).
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// AppName is the application directory name.
	AppName = "todos"

	// FileName is the config file inside the config dir.
	FileName = "config.toml"

	// LogFileName is the default log file inside the config dir.
	LogFileName = "todos.log"
)

// Defaults.
const (
	DefaultAPIURL             = "https://mate.academy/students-api"
	DefaultLogLevel           = "info"
	DefaultTheme              = "classic"
	DefaultNoticeTimeout      = 3 * time.Second
	DefaultRequestTimeout     = 5 * time.Second
	DefaultMaxParallelDeletes = 0
)

// Config holds every tunable of the client.
type Config struct {
	APIURL             string   `toml:"api_url"`
	UserID             int      `toml:"user_id"`
	Theme              string   `toml:"theme"`
	LogLevel           string   `toml:"log_level"`
	LogFile            string   `toml:"log_file"`
	NoticeTimeout      Duration `toml:"notice_timeout"`
	RequestTimeout     Duration `toml:"request_timeout"`
	MaxParallelDeletes int      `toml:"max_parallel_deletes"`

	// Dir is the configuration directory (credentials, default log file).
	Dir string `toml:"-"`

	// File is the config file that was read, empty if none.
	File string `toml:"-"`
}

// Duration is a time.Duration written as "3s", "500ms" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// flagValues holds what was given on the command line.
type flagValues struct {
	configFile string
	apiURL     string
	userID     int
	logLevel   string
	logFile    string
	theme      string
}

func registerFlags(fs *flag.FlagSet, fv *flagValues) {
	fs.StringVar(&fv.configFile, "config", "", "path to config.toml")
	fs.StringVar(&fv.apiURL, "api", "", "todos API base URL")
	fs.IntVar(&fv.userID, "user", 0, "user id whose todos are shown")
	fs.StringVar(&fv.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&fv.logFile, "log-file", "", "log file used by the interactive UI")
	fs.StringVar(&fv.theme, "theme", "", "classic, neon or mono")
}

// Load parses flags from args and builds the config. Positional arguments
// are left in fs.Args().
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	var fv flagValues
	registerFlags(fs, &fv)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// 1. defaults
	cfg := &Config{}
	setDefaults(cfg)

	// 2. config file
	path := fv.configFile
	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.Dir, FileName)
	} else {
		cfg.Dir = filepath.Dir(path)
	}
	if err := loadFile(cfg, path); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	} else {
		cfg.File = path
	}

	// 3. environment
	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	// 4. flags
	if set["api"] {
		cfg.APIURL = fv.apiURL
	}
	if set["user"] {
		cfg.UserID = fv.userID
	}
	if set["log-level"] {
		cfg.LogLevel = fv.logLevel
	}
	if set["log-file"] {
		cfg.LogFile = fv.logFile
	}
	if set["theme"] {
		cfg.Theme = fv.theme
	}

	finalize(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.APIURL = DefaultAPIURL
	cfg.LogLevel = DefaultLogLevel
	cfg.Theme = DefaultTheme
	cfg.NoticeTimeout = Duration{DefaultNoticeTimeout}
	cfg.RequestTimeout = Duration{DefaultRequestTimeout}
	cfg.MaxParallelDeletes = DefaultMaxParallelDeletes
	cfg.Dir = DefaultDir()
}

func loadFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("TODOS_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("TODOS_USER_ID"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TODOS_USER_ID: not a number: %q", v)
		}
		cfg.UserID = n
	}
	if v := os.Getenv("TODOS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TODOS_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	return nil
}

func finalize(cfg *Config) {
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.Dir, LogFileName)
	}
	cfg.LogFile = expandHome(cfg.LogFile)
}

// Validate checks values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url %q: must be an absolute http(s) URL", c.APIURL)
	}
	if c.UserID < 0 {
		return fmt.Errorf("user_id %d: must not be negative", c.UserID)
	}
	if c.NoticeTimeout.Duration <= 0 {
		return fmt.Errorf("notice_timeout must be positive")
	}
	if c.RequestTimeout.Duration <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.MaxParallelDeletes < 0 {
		return fmt.Errorf("max_parallel_deletes %d: must not be negative", c.MaxParallelDeletes)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	return nil
}

// RequireUser fails when no user id is configured. Commands that talk to the
// API call it; help and auth do not.
func (c *Config) RequireUser() error {
	if c.UserID <= 0 {
		return fmt.Errorf("no user id: set user_id in %s, TODOS_USER_ID or -user", filepath.Join(c.Dir, FileName))
	}
	return nil
}

// DefaultDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
