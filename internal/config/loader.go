package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "ANTIPLAG_"
	envConfigFile = envPrefix + "CONFIG"
	envDotEnvFile = envPrefix + "ENV_FILE"
	defaultDotEnv = ".env"
)

// Load builds a Config by layering, low to high precedence:
//  1. defaults (New)
//  2. a dotenv file (ANTIPLAG_ENV_FILE, or ./.env when present)
//  3. YAML file: path argument, else ANTIPLAG_CONFIG
//  4. env (prefix ANTIPLAG_, "__" separates nested keys: ANTIPLAG_MOSS__USER_ID)
func Load(_ context.Context, path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(envConfigFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps ANTIPLAG_MOSS__USER_ID to moss.user_id. Single underscores are
// kept so keys match the koanf tags.
func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

func loadDotEnv() error {
	path := os.Getenv(envDotEnvFile)
	explicit := path != ""
	if !explicit {
		path = defaultDotEnv
	}

	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: %w: %s: %w", ErrLoadConfig, ErrDotEnv, path, err)
}
