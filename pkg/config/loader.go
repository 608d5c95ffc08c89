package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// LoadOptions controls where configuration values come from.
type LoadOptions struct {
	// EnvFile is loaded into the process environment before env variables are read.
	// A missing file is ignored unless EnvFileRequired is set.
	EnvFile         string
	EnvFileRequired bool
	// Lookup overrides os environment lookups; used by tests.
	Lookup func(string) (string, bool)
}

// Load resolves defaults, the optional .env file and environment variables into a validated Config.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := loadEnvFile(opts); err != nil {
		return nil, err
	}
	if err := loadEnvironment(k, opts.Lookup); err != nil {
		return nil, err
	}
	cfg, err := unmarshal(k)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile(opts LoadOptions) error {
	if opts.EnvFile == "" {
		return nil
	}
	if err := godotenv.Load(opts.EnvFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !opts.EnvFileRequired {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
	}
	return nil
}

func loadEnvironment(k *koanf.Koanf, lookup func(string) (string, bool)) error {
	envToPath := make(map[string]string)
	for _, mapping := range GenerateEnvMappings() {
		envToPath[mapping.EnvVar] = mapping.ConfigPath
	}
	if lookup != nil {
		values := make(map[string]any)
		for envVar, path := range envToPath {
			if value, ok := lookup(envVar); ok {
				values[path] = value
			}
		}
		if len(values) == 0 {
			return nil
		}
		if err := k.Load(confmap(values), nil); err != nil {
			return fmt.Errorf("failed to load environment overrides: %w", err)
		}
		return nil
	}
	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key string, value string) (string, any) {
			path, ok := envToPath[key]
			if !ok {
				return "", nil
			}
			return path, value
		},
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	for i, p := range cfg.RateLimit.Excluded {
		cfg.RateLimit.Excluded[i] = strings.TrimSpace(p)
	}
	return &cfg, nil
}

// confmap adapts a flat map keyed by koanf paths to koanf.Provider.
type confmap map[string]any

func (m confmap) ReadBytes() ([]byte, error) {
	return nil, errors.New("confmap provider does not support ReadBytes")
}

func (m confmap) Read() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for key, value := range m {
		out[key] = value
	}
	return unflatten(out), nil
}

func unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, value := range flat {
		parts := strings.Split(key, ".")
		cur := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := cur[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[part] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = value
	}
	return out
}

var validate = validator.New()
