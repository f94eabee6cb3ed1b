// Package config loads the mpd-shuffler configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultTimeout is the ping interval for the command connection, in seconds.
	DefaultTimeout = 30

	// DefaultReconnectDelay is how long to wait between failed sessions, in seconds.
	DefaultReconnectDelay = 60
)

var (
	ErrMissingAddress  = errors.New("mpd_address is required")
	ErrMissingDatabase = errors.New("database is required")
	ErrInvalidTimeout  = errors.New("mpd_timeout must be positive")
)

// Config is immutable after Load returns.
type Config struct {
	MPDAddress  string `toml:"mpd_address"`
	MPDPassword string `toml:"mpd_password"`

	// Database is the location of the selection store.
	Database string `toml:"database"`

	// SongRegex restricts which files participate in shuffling. Empty matches everything.
	SongRegex string `toml:"song_regex"`

	// KeepLast is the number of played entries kept before the current song.
	// Negative means unlimited.
	KeepLast *int `toml:"keep_last"`

	MPDTimeout     int `toml:"mpd_timeout"`
	ReconnectDelay int `toml:"reconnect_delay"`

	DisableRepeat    bool `toml:"disable_repeat"`
	LockVolume       bool `toml:"lock_volume"`
	DisableCrossfade bool `toml:"disable_crossfade"`

	NewSongsTreatedAsOld bool `toml:"new_songs_treated_as_old"`

	Debug bool `toml:"debug"`

	songRegex *regexp.Regexp
}

// DefaultPath returns $XDG_CONFIG_HOME/mpd-shuffler/config.toml, falling back to ~/.config.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "mpd-shuffler", "config.toml")
}

// Load reads and validates the TOML configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a TOML document.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		MPDTimeout:     DefaultTimeout,
		ReconnectDelay: DefaultReconnectDelay,
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and compiles the song filter.
func (c *Config) Validate() error {
	if c.MPDAddress == "" {
		return ErrMissingAddress
	}
	if c.Database == "" {
		return ErrMissingDatabase
	}
	if c.MPDTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.ReconnectDelay < 0 {
		c.ReconnectDelay = 0
	}

	c.songRegex = nil
	if c.SongRegex != "" {
		re, err := regexp.Compile(c.SongRegex)
		if err != nil {
			return fmt.Errorf("invalid song_regex %q: %w", c.SongRegex, err)
		}
		c.songRegex = re
	}
	return nil
}

// Retention returns the keep_last limit and whether one is configured.
func (c *Config) Retention() (int, bool) {
	if c.KeepLast == nil || *c.KeepLast < 0 {
		return 0, false
	}
	return *c.KeepLast, true
}

// MatchesSong reports whether file participates in selection.
func (c *Config) MatchesSong(file string) bool {
	return c.songRegex == nil || c.songRegex.MatchString(file)
}

// PingInterval is how often the idle command connection is pinged.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.MPDTimeout) * time.Second
}

// RetryDelay is the wait between a failed session and the next attempt.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.ReconnectDelay) * time.Second
}
