// Package config wraps the viper configuration singleton. Config is read
// from the repo's .beads/config.yaml when present, with BD_-prefixed
// environment variables taking precedence (BD_ACTOR, BD_DEBUG).
package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	v    *viper.Viper
	once sync.Once
)

// Initialize sets up the viper singleton. Called lazily by accessors, or
// explicitly at startup by embedders that want config resolved early.
func Initialize() {
	once.Do(func() {
		v = viper.New()
		v.SetConfigType("yaml")

		// Walk up from CWD to find the project .beads/config.yaml so
		// operations work from subdirectories.
		if cwd, err := os.Getwd(); err == nil {
			for dir := cwd; ; dir = filepath.Dir(dir) {
				configPath := filepath.Join(dir, ".beads", "config.yaml")
				if _, err := os.Stat(configPath); err == nil {
					v.SetConfigFile(configPath)
					break
				}
				if dir == filepath.Dir(dir) {
					break
				}
			}
		}

		v.SetEnvPrefix("BD")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()

		v.SetDefault("actor", "")
		v.SetDefault("debug", false)

		// Missing config file is fine; env and defaults still apply.
		_ = v.ReadInConfig()
	})
}

// Actor resolves the identity recorded on events: BD_ACTOR or the actor
// config key, then USER, then USERNAME, then the literal "unknown".
func Actor() string {
	Initialize()
	if actor := v.GetString("actor"); actor != "" {
		return actor
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	if user := os.Getenv("USERNAME"); user != "" {
		return user
	}
	return "unknown"
}

// GetString returns a config value by key.
func GetString(key string) string {
	Initialize()
	return v.GetString(key)
}

// GetBool returns a boolean config value by key.
func GetBool(key string) bool {
	Initialize()
	return v.GetBool(key)
}

// Defaults is the config file written at repo init. Only keys a user is
// expected to touch; everything else has in-code defaults.
type Defaults struct {
	Prefix string `yaml:"prefix"`
	Actor  string `yaml:"actor,omitempty"`
}

// WriteDefault creates <beadsDir>/config.yaml when it does not exist yet,
// seeding it with the repo's id prefix. Never overwrites a user's file.
func WriteDefault(beadsDir, prefix string) error {
	path := filepath.Join(beadsDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	encoded, err := yaml.Marshal(Defaults{Prefix: prefix})
	if err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0o644)
}
