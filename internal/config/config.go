package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cwygoda/transcriber/internal/domain"
)

// Source names accepted by -source.
const (
	SourceWeb   = "web"
	SourceYTDLP = "ytdlp"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds application configuration.
type Config struct {
	ConfigPath      string
	Input           string
	OutputDir       string
	LogFile         string
	LogLevel        string
	Source          string
	Languages       []string
	MinDelay        time.Duration
	MaxDelay        time.Duration
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	RequestInterval time.Duration
	HTTPTimeout     time.Duration
	StreakThreshold int
	YTDLPPath       string
	// YouTubeAPIKey enables the Data API playlist resolver.
	YouTubeAPIKey string
	// Playlist, when set, switches the run to writing the playlist's
	// video URLs to Input instead of fetching transcripts.
	Playlist string
	Proxy    ProxyConfig
}

// ProxyConfig holds the raw proxy settings; transport selection happens
// later.
type ProxyConfig struct {
	Username  string
	Password  string
	URL       string
	SOCKSHost string
	SOCKSPort int
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Input:           "urls.txt",
		OutputDir:       "transcripts",
		LogFile:         filepath.Join("logs", "transcriber.log"),
		LogLevel:        "info",
		Source:          SourceWeb,
		Languages:       []string{"en"},
		MinDelay:        2 * time.Second,
		MaxDelay:        5 * time.Second,
		MaxAttempts:     3,
		BackoffBase:     5 * time.Second,
		BackoffMax:      60 * time.Second,
		RequestInterval: time.Second,
		HTTPTimeout:     30 * time.Second,
		StreakThreshold: 3,
		YTDLPPath:       "yt-dlp",
	}
}

// DefaultConfigPath returns the config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "transcriber", "config.toml")
}

// LoadDotEnv loads variables from path into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load builds Config from defaults, the TOML file, the environment and
// command-line args, each layer overriding the previous one.
func Load(args []string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	// First pass only locates the config file; flags are applied again
	// last so they win over file and environment.
	probe := Default()
	if err := newFlagSet(probe, io.Discard).Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	path, explicit := probe.ConfigPath, probe.ConfigPath != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := newFlagSet(cfg, io.Discard).Parse(args); err != nil {
		return nil, err
	}
	cfg.ConfigPath = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Usage writes flag help to w.
func Usage(w io.Writer) {
	fs := newFlagSet(Default(), w)
	fmt.Fprintln(w, "Usage: transcriber [flags]")
	fs.PrintDefaults()
}

func newFlagSet(cfg *Config, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("transcriber", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "TOML config file")
	fs.StringVar(&cfg.Input, "input", cfg.Input, "File with one video URL per line")
	fs.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Transcript output directory")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Source, "source", cfg.Source, "Transcript source (web, ytdlp)")
	fs.Func("languages", "Comma-separated caption language preference (default \"en\")", func(s string) error {
		cfg.Languages = splitList(s)
		return nil
	})
	fs.Var((*secondsValue)(&cfg.MinDelay), "min-delay", "Minimum delay between videos in seconds")
	fs.Var((*secondsValue)(&cfg.MaxDelay), "max-delay", "Maximum delay between videos in seconds")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Maximum fetch attempts per video")
	fs.Var((*secondsValue)(&cfg.BackoffBase), "backoff-base", "Initial retry backoff in seconds")
	fs.Var((*secondsValue)(&cfg.BackoffMax), "backoff-max", "Maximum retry backoff in seconds")
	fs.DurationVar(&cfg.RequestInterval, "request-interval", cfg.RequestInterval, "Minimum spacing between HTTP requests")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "HTTP request timeout")
	fs.StringVar(&cfg.YTDLPPath, "ytdlp", cfg.YTDLPPath, "yt-dlp binary for -source ytdlp and playlist listing")
	fs.StringVar(&cfg.Playlist, "playlist", cfg.Playlist, "Write the video URLs of this playlist to -input and exit")
	return fs
}

// secondsValue is a flag.Value holding a duration given in (fractional)
// seconds.
type secondsValue time.Duration

func (s *secondsValue) String() string {
	return strconv.FormatFloat(time.Duration(*s).Seconds(), 'f', -1, 64)
}

func (s *secondsValue) Set(v string) error {
	d, err := parseSeconds(v)
	if err != nil {
		return err
	}
	*s = secondsValue(d)
	return nil
}

func parseSeconds(v string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse seconds %q: %w", v, err)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.MinDelay < 0 || c.MaxDelay < 0:
		return fmt.Errorf("%w: delays must not be negative", ErrInvalid)
	case c.MinDelay > c.MaxDelay:
		return fmt.Errorf("%w: min delay %s exceeds max delay %s", ErrInvalid, c.MinDelay, c.MaxDelay)
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be at least 1", ErrInvalid)
	case c.BackoffBase < 0 || c.BackoffMax < c.BackoffBase:
		return fmt.Errorf("%w: backoff range %s..%s", ErrInvalid, c.BackoffBase, c.BackoffMax)
	case c.RequestInterval < 0 || c.HTTPTimeout <= 0:
		return fmt.Errorf("%w: request interval and http timeout must be positive", ErrInvalid)
	case c.StreakThreshold < 0:
		return fmt.Errorf("%w: streak threshold must not be negative", ErrInvalid)
	case c.Source != SourceWeb && c.Source != SourceYTDLP:
		return fmt.Errorf("%w: unknown source %q", ErrInvalid, c.Source)
	case len(c.Languages) == 0:
		return fmt.Errorf("%w: at least one language is required", ErrInvalid)
	case c.Input == "" || c.OutputDir == "":
		return fmt.Errorf("%w: input and output must be set", ErrInvalid)
	case c.Proxy.SOCKSPort < 0 || c.Proxy.SOCKSPort > 65535:
		return fmt.Errorf("%w: socks port %d out of range", ErrInvalid, c.Proxy.SOCKSPort)
	}
	if c.Playlist != "" {
		if _, err := domain.ParsePlaylistURL(c.Playlist); err != nil {
			return fmt.Errorf("%w: playlist: %v", ErrInvalid, err)
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
