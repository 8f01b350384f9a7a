package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
	"github.com/imdario/mergo"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/cdtdelta/4n6timeliner/internal/fault"
)

// LoadOptions names the optional layers of Load.
type LoadOptions struct {
	// File is a YAML or TOML config file, chosen by extension
	File string
	// EnvFile is a dotenv file; a missing file is ignored (default: .env)
	EnvFile string
	// LookupEnv reads the process environment (default: os.LookupEnv)
	LookupEnv func(string) (string, bool)
}

// Load builds a Config from defaults, the config file, the dotenv file and
// the environment, in increasing precedence. Zero values in a higher layer
// do not replace lower layers. The result is not validated; flags are
// applied by the caller before Validate.
func Load(fs afero.Fs, opts LoadOptions) (*Config, error) {
	cfg := Defaults()

	if opts.File != "" {
		fileCfg, err := readFile(fs, opts.File)
		if err != nil {
			return nil, err
		}
		if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, &fault.ConfigurationError{Reason: "merging config file", Err: err}
		}
	}

	dotenv, err := readDotenv(fs, opts.EnvFile)
	if err != nil {
		return nil, err
	}
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	getenv := func(key string) string {
		if v, ok := lookup(key); ok {
			return v
		}
		return dotenv[key]
	}

	envCfg := &Config{}
	if err := loadStruct(reflect.ValueOf(envCfg).Elem(), getenv, false); err != nil {
		return nil, &fault.ConfigurationError{Reason: "config load", Err: err}
	}
	if err := mergo.Merge(cfg, envCfg, mergo.WithOverride); err != nil {
		return nil, &fault.ConfigurationError{Reason: "merging environment", Err: err}
	}

	return cfg, nil
}

func readFile(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, &fault.ConfigurationError{Reason: "reading config file", Err: err}
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml", ".json":
		err = yaml.UnmarshalWithOptions(data, cfg, yaml.Strict())
	default:
		return nil, &fault.ConfigurationError{Reason: fmt.Sprintf("unsupported config file type %q", filepath.Ext(path))}
	}
	if err != nil {
		return nil, &fault.ConfigurationError{Reason: "parsing " + path, Err: err}
	}
	return cfg, nil
}

func readDotenv(fs afero.Fs, path string) (map[string]string, error) {
	if path == "" {
		path = ".env"
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &fault.ConfigurationError{Reason: "reading " + path, Err: err}
	}
	env, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &fault.ConfigurationError{Reason: "parsing " + path, Err: err}
	}
	return env, nil
}

func applyDefaults(cfg *Config) error {
	return loadStruct(reflect.ValueOf(cfg).Elem(), func(string) string { return "" }, true)
}

// loadStruct recursively populates struct fields from getenv, falling back
// to the default tag when useDefaults is set.
func loadStruct(v reflect.Value, getenv func(string) string, useDefaults bool) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal, getenv, useDefaults); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := getenv(envName)
		if value == "" && envAlt != "" {
			value = getenv(envAlt)
		}
		if value == "" && useDefaults {
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		field.Set(reflect.ValueOf(SplitList(value)))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// SplitList splits a comma-separated value, trimming whitespace and
// dropping empty items.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
