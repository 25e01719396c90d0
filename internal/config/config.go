// Package config loads dockertester.yaml profiles.
//
// Values come from, in increasing priority: built-in defaults, the YAML file and DOCKERTESTER_*
// environment variables (DOCKERTESTER_POSTGRES_IMAGE overrides postgres.image). A .env file next
// to the profile is loaded into the environment first without overriding variables already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"dockertester/pkg/profile"
)

const (
	// DefaultFileName is the profile looked up in the working directory.
	DefaultFileName = "dockertester.yaml"

	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "DOCKERTESTER"

	// DefaultStateFile records the containers started by the CLI.
	DefaultStateFile = ".dockertester.state.json"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
}

// Load reads the profile at filePath. An empty filePath uses dockertester.yaml in the working
// directory when it exists and the defaults otherwise.
func Load(filePath string) (*profile.Profile, error) {
	explicit := filePath != ""
	if !explicit {
		filePath = DefaultFileName
	}

	_, err := os.Stat(filePath)
	switch {
	case errors.Is(err, fs.ErrNotExist) && explicit:
		return nil, fmt.Errorf("config file not found: %s", filePath)
	case errors.Is(err, fs.ErrNotExist):
		filePath = ""
	case err != nil:
		return nil, fmt.Errorf("failed to access config file: %w", err)
	}

	envDir := "."
	if filePath != "" {
		envDir = filepath.Dir(filePath)
	}
	if err := loadDotEnv(filepath.Join(envDir, ".env")); err != nil {
		return nil, err
	}

	v := newViper()
	if filePath != "" {
		v.SetConfigFile(filePath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var p profile.Profile
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("failed to parse config file - malformed YAML: %w", err)
	}

	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks p and returns a readable error listing every invalid field.
func Validate(p *profile.Profile) error {
	if err := validate.Struct(p); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("apiVersion", "v1")
	v.SetDefault("kind", "Profile")
	v.SetDefault("stateFile", DefaultStateFile)
	v.SetDefault("postgres.image", "postgres:14-alpine")
	v.SetDefault("postgres.migrations", "./migrations")
	v.SetDefault("postgres.maxConns", 5)
	v.SetDefault("postgres.readyAttempts", 10)
	v.SetDefault("postgres.sessionLock", false)
	return v
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validation failed: %w", err)
	}

	var errorMessages []string
	for _, e := range validationErrors {
		errorMessages = append(errorMessages, formatFieldError(e))
	}

	if len(errorMessages) == 1 {
		return fmt.Errorf("validation error: %s", errorMessages[0])
	}

	var b strings.Builder
	b.WriteString("validation errors:\n")
	for _, msg := range errorMessages {
		fmt.Fprintf(&b, "  - %s\n", msg)
	}
	return errors.New(b.String())
}

func formatFieldError(e validator.FieldError) string {
	_, field, found := strings.Cut(e.Namespace(), ".")
	if !found {
		field = e.Field()
	}

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required but missing", field)
	case "eq":
		return fmt.Sprintf("field '%s' must be '%s'", field, e.Param())
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", field, e.Param())
	default:
		return fmt.Sprintf("field '%s' failed validation (%s)", field, e.Tag())
	}
}
