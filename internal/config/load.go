package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment variable Load reads.
const EnvPrefix = "SPRITEFORGE_"

// Load reads the file at path over the defaults, applies SPRITEFORGE_*
// environment overrides and validates the result. An empty path skips the
// file layer.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return Config{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := Decode(&cfg, path, bytes.NewReader(data)); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg, os.Environ()); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode parses r over cfg. The format is chosen by the extension of name.
// Unknown keys are rejected.
func Decode(cfg *Config, name string, r io.Reader) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return tomlError(name, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return &ParseError{Path: name, Message: err.Error(), Err: err}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	return nil
}

func tomlError(name string, err error) error {
	pe := &ParseError{Path: name, Message: err.Error(), Err: err}
	var de *toml.DecodeError
	if errors.As(err, &de) {
		pe.Line, pe.Column = de.Position()
	}
	var se *toml.StrictMissingError
	if errors.As(err, &se) && len(se.Errors) > 0 {
		pe.Message = "unknown key " + strings.Join(se.Errors[0].Key(), ".")
		pe.Line, pe.Column = se.Errors[0].Position()
	}
	return pe
}

// Marshal encodes cfg in the format chosen by the extension of name.
func Marshal(cfg Config, name string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		return toml.Marshal(cfg)
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
}
