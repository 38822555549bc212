package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dooshek/vumeter/internal/fileops"
	"github.com/dooshek/vumeter/internal/meter"
	"github.com/dooshek/vumeter/internal/types"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFilename = "vumeter.yaml"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report YAML keys rather than Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
}

// Default returns the stock configuration: microphone capture, console
// gauge at 60 fps, no network or bus services.
func Default() *types.Config {
	return &types.Config{
		Meter: meter.DefaultConfig(),
		Display: types.DisplayConfig{
			FPS:          60,
			Console:      true,
			ConsoleWidth: 48,
		},
		Log: types.LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads filename from the config directory and overlays it on
// the defaults. It returns nil, nil when the file does not exist.
func LoadConfig(fileOps fileops.FileOps, filename string) (*types.Config, error) {
	data, err := fileOps.LoadConfig(filename)
	if err != nil {
		if errors.Is(err, fileops.ErrConfigNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig validates config and writes it to the config directory.
func SaveConfig(fileOps fileops.FileOps, filename string, config *types.Config) error {
	if err := Validate(config); err != nil {
		return err
	}

	if err := fileOps.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fileOps.SaveConfig(filename, data); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Validate checks ranges and cross-field constraints, e.g. that the
// decibel floor lies below the peak.
func Validate(config *types.Config) error {
	err := validate.Struct(config)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.TrimPrefix(e.Namespace(), "Config.")
		if e.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", field, e.Tag(), e.Param(), e.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s (got %v)", field, e.Tag(), e.Value()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
