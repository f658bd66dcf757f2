// Package config loads opkg's configuration with spf13/viper, the
// configuration library the example pack's services standardize on.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/viper"

	"github.com/opkgtool/opkg/internal/jobs"
)

// Config is the configuration consumed by the core (spec §6) plus the
// self-update probe origins spec §9 says should be configuration, not
// constants.
type Config struct {
	CacheDir        string `mapstructure:"cachedir"`
	HandleRCScripts bool   `mapstructure:"handle_rc_scripts"`

	SelfUpdatePrimary  string `mapstructure:"self_update_primary"`
	SelfUpdateFallback string `mapstructure:"self_update_fallback"`

	RepoName string `mapstructure:"repo_name"`
	RepoURL  string `mapstructure:"repo_url"`

	// MinimumOpkgVersion, if set, is what CheckCompatible compares a build
	// version against using Masterminds/semver (the CLI does not call
	// CheckCompatible), for the tool's own release
	// version (as opposed to the package catalog's pkg-style version
	// strings handled by internal/version; see that package's doc
	// comment for why catalog versions need a different comparator).
	MinimumOpkgVersion string `mapstructure:"minimum_opkg_version"`
}

// Load reads configuration from configPath (if non-empty), environment
// variables prefixed OPKG_, and baked-in defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OPKG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("cachedir", "/var/cache/opkg")
	v.SetDefault("handle_rc_scripts", false)
	v.SetDefault("self_update_primary", "ports-mgmt/pkg")
	v.SetDefault("self_update_fallback", "ports-mgmt/pkg-devel")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("CACHEDIR is required")
	}
	return &cfg, nil
}

// CheckCompatible verifies buildVersion satisfies MinimumOpkgVersion, if
// set.
func (c *Config) CheckCompatible(buildVersion string) error {
	if c.MinimumOpkgVersion == "" {
		return nil
	}
	min, err := semver.NewVersion(c.MinimumOpkgVersion)
	if err != nil {
		return fmt.Errorf("invalid minimum_opkg_version %q: %w", c.MinimumOpkgVersion, err)
	}
	cur, err := semver.NewVersion(buildVersion)
	if err != nil {
		return fmt.Errorf("invalid build version %q: %w", buildVersion, err)
	}
	if cur.LessThan(min) {
		return fmt.Errorf("opkg %s is older than the minimum required %s", cur, min)
	}
	return nil
}

// SelfUpdateOrigins converts the loaded config into the solver's
// SelfUpdateOrigins value.
func (c *Config) SelfUpdateOrigins() jobs.SelfUpdateOrigins {
	return jobs.SelfUpdateOrigins{Primary: c.SelfUpdatePrimary, Fallback: c.SelfUpdateFallback}
}
