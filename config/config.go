// Package config bootstraps a cache registry from a config file.
//
//	disable: false
//	managers:
//	  - name: app
//	    caches:
//	      - name: user
//	        max_size: 500
//	        expire_after_write: 30s
//	        monitor: true
//	        listen_path: /var/run/app/user.invalidate
//
// YAML, JSON and TOML are accepted; the format follows the file extension.
// AUTOCACHE_DISABLE and AUTOCACHE_SWEEP_INTERVAL override the file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/autocache"
)

var ErrInvalid = errors.New("autocache/config: invalid configuration")

type Config struct {
	// Disable turns the cache-aside interceptor into a pass-through.
	Disable  bool            `mapstructure:"disable"`
	Managers []ManagerConfig `mapstructure:"managers"`

	// "manager/cache" names Load clamped; Build reports them.
	clamped []string
}

type ManagerConfig struct {
	Name   string        `mapstructure:"name"` // "" => autocache.DefaultManager
	Caches []CacheConfig `mapstructure:"caches"`
}

type CacheConfig struct {
	Name             string        `mapstructure:"name"`
	ListenPath       string        `mapstructure:"listen_path"`
	MaxSize          int           `mapstructure:"max_size"`           // 0 => 100, capped at 5000
	ExpireAfterWrite time.Duration `mapstructure:"expire_after_write"` // 0 => 1s
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	Monitor          bool          `mapstructure:"monitor"`
}

type overrides struct {
	Disable       string        `env:"DISABLE"` // "" => keep the file value
	SweepInterval time.Duration `env:"SWEEP_INTERVAL"`
}

// Load reads path, applies environment overrides and defaults, and validates
// the result.
func Load(path string) (Config, error) {
	return load(path, nil)
}

// environ == nil reads the process environment.
func load(path string, environ map[string]string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("disable", false)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("autocache/config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("autocache/config: decode %s: %w", path, err)
	}

	ov, err := env.ParseAsWithOptions[overrides](env.Options{
		Prefix:      "AUTOCACHE_",
		Environment: environ,
	})
	if err != nil {
		return Config{}, fmt.Errorf("autocache/config: environment: %w", err)
	}
	if err := cfg.override(ov); err != nil {
		return Config{}, err
	}

	cfg.clamped = cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) override(ov overrides) error {
	if ov.Disable != "" {
		b, err := strconv.ParseBool(ov.Disable)
		if err != nil {
			return fmt.Errorf("autocache/config: AUTOCACHE_DISABLE: %w", err)
		}
		c.Disable = b
	}
	if ov.SweepInterval > 0 {
		for i := range c.Managers {
			for j := range c.Managers[i].Caches {
				if c.Managers[i].Caches[j].SweepInterval == 0 {
					c.Managers[i].Caches[j].SweepInterval = ov.SweepInterval
				}
			}
		}
	}
	return nil
}

// applyDefaults fills zero values and clamps oversized caches. It returns the
// "manager/cache" names whose MaxSize was clamped.
func (c *Config) applyDefaults() []string {
	var clamped []string
	for i := range c.Managers {
		m := &c.Managers[i]
		if m.Name == "" {
			m.Name = autocache.DefaultManager
		}
		for j := range m.Caches {
			cc := &m.Caches[j]
			if cc.MaxSize == 0 {
				cc.MaxSize = autocache.DefaultMaxSize
			}
			if cc.MaxSize > autocache.DefaultMaxSizeExtreme {
				cc.MaxSize = autocache.DefaultMaxSizeExtreme
				clamped = append(clamped, m.Name+"/"+cc.Name)
			}
			if cc.ExpireAfterWrite == 0 {
				cc.ExpireAfterWrite = autocache.DefaultExpireAfterWrite
			}
		}
	}
	return clamped
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	managers := make(map[string]struct{}, len(c.Managers))
	for _, m := range c.Managers {
		name := m.Name
		if name == "" {
			name = autocache.DefaultManager
		}
		if _, dup := managers[name]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate manager %q", ErrInvalid, name))
		}
		managers[name] = struct{}{}

		caches := make(map[string]struct{}, len(m.Caches))
		for _, cc := range m.Caches {
			if cc.Name == "" {
				errs = append(errs, fmt.Errorf("%w: manager %q: cache without a name", ErrInvalid, name))
				continue
			}
			if _, dup := caches[cc.Name]; dup {
				errs = append(errs, fmt.Errorf("%w: manager %q: duplicate cache %q", ErrInvalid, name, cc.Name))
			}
			caches[cc.Name] = struct{}{}
			if cc.MaxSize < 0 {
				errs = append(errs, fmt.Errorf("%w: cache %q: max_size must be > 0, got %d", ErrInvalid, cc.Name, cc.MaxSize))
			}
			if cc.ExpireAfterWrite < 0 {
				errs = append(errs, fmt.Errorf("%w: cache %q: expire_after_write must be >= 0, got %s", ErrInvalid, cc.Name, cc.ExpireAfterWrite))
			}
			if cc.SweepInterval < 0 {
				errs = append(errs, fmt.Errorf("%w: cache %q: sweep_interval must be >= 0, got %s", ErrInvalid, cc.Name, cc.SweepInterval))
			}
		}
	}
	return errors.Join(errs...)
}
