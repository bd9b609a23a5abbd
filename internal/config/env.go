package config

import (
	"fmt"
	"strconv"
	"time"
)

// applyEnv overrides settings from environment variables. Malformed numbers
// are reported instead of ignored.
func (c *Config) applyEnv(getenv func(string) string) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"TRANSCRIBER_INPUT", &c.Input},
		{"TRANSCRIBER_OUTPUT_DIR", &c.OutputDir},
		{"TRANSCRIBER_LOG_FILE", &c.LogFile},
		{"TRANSCRIBER_LOG_LEVEL", &c.LogLevel},
		{"TRANSCRIBER_SOURCE", &c.Source},
		{"TRANSCRIBER_YTDLP", &c.YTDLPPath},
		{"WEBSHARE_USERNAME", &c.Proxy.Username},
		{"WEBSHARE_PASSWORD", &c.Proxy.Password},
		{"CUSTOM_PROXY_URL", &c.Proxy.URL},
		{"TOR_SOCKS_HOST", &c.Proxy.SOCKSHost},
		{"YOUTUBE_API_KEY", &c.YouTubeAPIKey},
	}
	for _, s := range strs {
		if v := getenv(s.key); v != "" {
			*s.dst = v
		}
	}

	if v := getenv("TRANSCRIBER_LANGUAGES"); v != "" {
		c.Languages = splitList(v)
	}

	secs := []struct {
		key string
		dst *time.Duration
	}{
		{"TRANSCRIBER_MIN_DELAY", &c.MinDelay},
		{"TRANSCRIBER_MAX_DELAY", &c.MaxDelay},
		{"TRANSCRIBER_BACKOFF_BASE", &c.BackoffBase},
		{"TRANSCRIBER_BACKOFF_MAX", &c.BackoffMax},
	}
	for _, s := range secs {
		if v := getenv(s.key); v != "" {
			d, err := parseSeconds(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, s.key, err)
			}
			*s.dst = d
		}
	}

	durs := []struct {
		key string
		dst *time.Duration
	}{
		{"TRANSCRIBER_REQUEST_INTERVAL", &c.RequestInterval},
		{"TRANSCRIBER_HTTP_TIMEOUT", &c.HTTPTimeout},
	}
	for _, s := range durs {
		if v := getenv(s.key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, s.key, err)
			}
			*s.dst = d
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"TRANSCRIBER_MAX_ATTEMPTS", &c.MaxAttempts},
		{"TRANSCRIBER_STREAK_THRESHOLD", &c.StreakThreshold},
		{"TOR_SOCKS_PORT", &c.Proxy.SOCKSPort},
	}
	for _, s := range ints {
		if v := getenv(s.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, s.key, err)
			}
			*s.dst = n
		}
	}
	return nil
}
