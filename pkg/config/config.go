// Package config loads tilegrid settings from .tilegrid.yaml, TILEGRID_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"tableflip.dev/tilegrid/pkg/grid"
	"tableflip.dev/tilegrid/pkg/imagecache"
)

// Keys recognized in the config file and, upper cased with a TILEGRID_
// prefix, in the environment.
const (
	KeyMinTileWidth       = "min_tile_width"
	KeyTileSpacing        = "tile_spacing"
	KeyLabelHeight        = "label_height"
	KeyViewMode           = "view_mode"
	KeyFetchIntervalMs    = "fetch_interval_ms"
	KeyCacheCeilingBytes  = "cache_ceiling_bytes"
	KeyMemoryCeilingBytes = "memory_ceiling_bytes"
	KeyCacheRetentionDays = "cache_retention_days"
	KeyCachePath          = "cache_path"
	KeyCacheBackend       = "cache_backend"
	KeyImageURL           = "image_url"
	KeyTilesPath          = "tiles_path"
	KeySweepIntervalMin   = "sweep_interval_minutes"
	KeyLogLevel           = "log_level"
)

// Cache backends.
const (
	BackendDiskv  = "diskv"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the resolved settings.
type Config struct {
	Grid          grid.GridConfig
	FetchInterval time.Duration

	CacheCeilingBytes  int64
	MemoryCeilingBytes int64
	CacheRetention     time.Duration
	CachePath          string
	CacheBackend       string
	SweepInterval      time.Duration

	// ImageURL is the fetch template. Empty selects generated images.
	ImageURL  string
	TilesPath string
	LogLevel  string
}

// New returns a viper instance with every default set and the config file
// search path configured. Nothing is read yet.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyMinTileWidth, grid.DefaultMinTileWidth)
	v.SetDefault(KeyTileSpacing, grid.DefaultTileSpacing)
	v.SetDefault(KeyLabelHeight, grid.DefaultLabelHeight)
	v.SetDefault(KeyViewMode, grid.Grid.String())
	v.SetDefault(KeyFetchIntervalMs, 120)
	v.SetDefault(KeyCacheCeilingBytes, imagecache.DefaultDiskCeiling)
	v.SetDefault(KeyMemoryCeilingBytes, imagecache.DefaultMemoryCeiling)
	v.SetDefault(KeyCacheRetentionDays, 90)
	v.SetDefault(KeyCachePath, "~/.tilegrid/cache")
	v.SetDefault(KeyCacheBackend, BackendDiskv)
	v.SetDefault(KeyImageURL, "")
	v.SetDefault(KeyTilesPath, "")
	v.SetDefault(KeySweepIntervalMin, 30)
	v.SetDefault(KeyLogLevel, "warn")

	v.SetConfigName(".tilegrid") // .yaml is implicit
	v.SetEnvPrefix("TILEGRID")
	v.AutomaticEnv()

	if override := os.Getenv("TILEGRID_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}
	return v
}

// Read loads the config file if there is one. A missing file is not an
// error.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: reading config file: %w", err)
		}
	}
	return nil
}

// Load reads the config file and resolves the settings.
func Load() (*Config, error) {
	v := New()
	if err := Read(v); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper resolves and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	mode, err := grid.ParseViewMode(v.GetString(KeyViewMode))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", KeyViewMode, err)
	}
	cachePath, err := homedir.Expand(v.GetString(KeyCachePath))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", KeyCachePath, err)
	}
	tilesPath, err := homedir.Expand(v.GetString(KeyTilesPath))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", KeyTilesPath, err)
	}

	gc := grid.DefaultConfig()
	gc.MinTileWidth = v.GetFloat64(KeyMinTileWidth)
	gc.TileSpacing = v.GetFloat64(KeyTileSpacing)
	gc.LabelHeight = v.GetFloat64(KeyLabelHeight)
	gc.ViewMode = mode

	c := &Config{
		Grid:               gc,
		FetchInterval:      time.Duration(v.GetInt64(KeyFetchIntervalMs)) * time.Millisecond,
		CacheCeilingBytes:  v.GetInt64(KeyCacheCeilingBytes),
		MemoryCeilingBytes: v.GetInt64(KeyMemoryCeilingBytes),
		CacheRetention:     time.Duration(v.GetInt64(KeyCacheRetentionDays)) * 24 * time.Hour,
		CachePath:          cachePath,
		CacheBackend:       strings.ToLower(strings.TrimSpace(v.GetString(KeyCacheBackend))),
		SweepInterval:      time.Duration(v.GetInt64(KeySweepIntervalMin)) * time.Minute,
		ImageURL:           strings.TrimSpace(v.GetString(KeyImageURL)),
		TilesPath:          tilesPath,
		LogLevel:           v.GetString(KeyLogLevel),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Grid.MinTileWidth <= 0:
		return fmt.Errorf("config: %s must be positive, got %v", KeyMinTileWidth, c.Grid.MinTileWidth)
	case c.Grid.TileSpacing < 0:
		return fmt.Errorf("config: %s must not be negative, got %v", KeyTileSpacing, c.Grid.TileSpacing)
	case c.Grid.LabelHeight < 0:
		return fmt.Errorf("config: %s must not be negative, got %v", KeyLabelHeight, c.Grid.LabelHeight)
	case c.FetchInterval < 0:
		return fmt.Errorf("config: %s must not be negative", KeyFetchIntervalMs)
	case c.CacheCeilingBytes <= 0:
		return fmt.Errorf("config: %s must be positive", KeyCacheCeilingBytes)
	case c.MemoryCeilingBytes <= 0:
		return fmt.Errorf("config: %s must be positive", KeyMemoryCeilingBytes)
	case c.CacheRetention < 0:
		return fmt.Errorf("config: %s must not be negative", KeyCacheRetentionDays)
	case c.SweepInterval < 0:
		return fmt.Errorf("config: %s must not be negative", KeySweepIntervalMin)
	}
	switch c.CacheBackend {
	case BackendDiskv, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("config: %s %q is not one of diskv, sqlite, memory", KeyCacheBackend, c.CacheBackend)
	}
	if c.CacheBackend != BackendMemory && c.CachePath == "" {
		return fmt.Errorf("config: %s is required for the %s backend", KeyCachePath, c.CacheBackend)
	}
	return nil
}
