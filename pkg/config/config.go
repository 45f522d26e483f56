// Package config loads the persistent updatectl configuration file.
//
// The file is YAML and every key can be overridden through environment
// variables with the UPDATECTL_ prefix, e.g. UPDATECTL_ENC_DIR.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the persistent configuration of updatectl.
type Config struct {
	// Downtime is the comma-separated list of downtime intervals, e.g.
	// "24.12.-02.01., 01.04.2026-03.04.2026".
	Downtime string `mapstructure:"downtime"`

	// ENCDir is the directory containing the per-host ENC YAML files.
	ENCDir string `mapstructure:"enc_dir"`

	// LockFile guards against concurrent invocations.
	LockFile string `mapstructure:"lock_file"`

	// HistoryDB is the path of the optional run-history SQLite database.
	// Empty disables run-history recording.
	HistoryDB string `mapstructure:"history_db"`
}

// Downtimes splits the configured downtime list into its raw interval
// strings.
func (c *Config) Downtimes() []string {
	if strings.TrimSpace(c.Downtime) == "" {
		return nil
	}
	parts := strings.Split(c.Downtime, ",")
	raws := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			raws = append(raws, s)
		}
	}
	return raws
}

// Load reads the configuration file at path. A missing file is not an
// error: it yields the defaults, in particular zero downtime intervals.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("downtime", "")
	v.SetDefault("enc_dir", "/appl/puppet/enc")
	v.SetDefault("lock_file", "/var/run/updates.lock")
	v.SetDefault("history_db", "")

	v.SetEnvPrefix("UPDATECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("unable to read configuration file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration file %s: %w", path, err)
	}
	return cfg, nil
}
