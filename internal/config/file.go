package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors the TOML layout. Pointer fields distinguish "absent"
// from zero values.
type fileConfig struct {
	Input           *string   `toml:"input"`
	OutputDir       *string   `toml:"output_dir"`
	LogFile         *string   `toml:"log_file"`
	LogLevel        *string   `toml:"log_level"`
	Source          *string   `toml:"source"`
	Languages       []string  `toml:"languages"`
	MinDelay        *float64  `toml:"min_delay"`
	MaxDelay        *float64  `toml:"max_delay"`
	MaxAttempts     *int      `toml:"max_attempts"`
	BackoffBase     *float64  `toml:"backoff_base"`
	BackoffMax      *float64  `toml:"backoff_max"`
	RequestInterval *duration `toml:"request_interval"`
	HTTPTimeout     *duration `toml:"http_timeout"`
	StreakThreshold *int      `toml:"streak_threshold"`
	YTDLPPath       *string   `toml:"ytdlp_path"`
	YouTubeAPIKey   *string   `toml:"youtube_api_key"`
	Proxy           struct {
		Username  *string `toml:"username"`
		Password  *string `toml:"password"`
		URL       *string `toml:"url"`
		SOCKSHost *string `toml:"socks_host"`
		SOCKSPort *int    `toml:"socks_port"`
	} `toml:"proxy"`
}

// duration decodes TOML strings such as "1500ms".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// loadFile applies the TOML file at path. A missing file is only an error
// when the path was given explicitly.
func (c *Config) loadFile(path string, explicit bool) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("%w: config file %s: %v", ErrInvalid, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%w: config file %s: unknown keys %s", ErrInvalid, path, strings.Join(keys, ", "))
	}

	setString(&c.Input, fc.Input)
	setString(&c.OutputDir, fc.OutputDir)
	setString(&c.LogFile, fc.LogFile)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.Source, fc.Source)
	if fc.Languages != nil {
		c.Languages = fc.Languages
	}
	setSeconds(&c.MinDelay, fc.MinDelay)
	setSeconds(&c.MaxDelay, fc.MaxDelay)
	setInt(&c.MaxAttempts, fc.MaxAttempts)
	setSeconds(&c.BackoffBase, fc.BackoffBase)
	setSeconds(&c.BackoffMax, fc.BackoffMax)
	if fc.RequestInterval != nil {
		c.RequestInterval = fc.RequestInterval.Duration
	}
	if fc.HTTPTimeout != nil {
		c.HTTPTimeout = fc.HTTPTimeout.Duration
	}
	setInt(&c.StreakThreshold, fc.StreakThreshold)
	setString(&c.YTDLPPath, fc.YTDLPPath)
	setString(&c.YouTubeAPIKey, fc.YouTubeAPIKey)
	setString(&c.Proxy.Username, fc.Proxy.Username)
	setString(&c.Proxy.Password, fc.Proxy.Password)
	setString(&c.Proxy.URL, fc.Proxy.URL)
	setString(&c.Proxy.SOCKSHost, fc.Proxy.SOCKSHost)
	setInt(&c.Proxy.SOCKSPort, fc.Proxy.SOCKSPort)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setSeconds(dst *time.Duration, v *float64) {
	if v != nil {
		*dst = time.Duration(*v * float64(time.Second))
	}
}
