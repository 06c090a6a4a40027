package model

import (
	"fmt"
	"os"

	"github.com/esimov/reenact"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config mirrors the model section of a face-vid2vid style YAML configuration.
type Config struct {
	ModelParams ModelParams `yaml:"model_params"`
}

// ModelParams holds the parameters shared by all networks and the per network sections.
type ModelParams struct {
	CommonParams      *CommonParams `yaml:"common_params"`
	GeneratorParams   Params        `yaml:"generator_params"`
	KPDetectorParams  Params        `yaml:"kp_detector_params"`
	HEEstimatorParams Params        `yaml:"he_estimator_params"`
}

// CommonParams are passed to every network.
type CommonParams struct {
	NumKP            int  `yaml:"num_kp"`
	ImageChannel     int  `yaml:"image_channel"`
	FeatureChannel   int  `yaml:"feature_channel"`
	EstimateJacobian bool `yaml:"estimate_jacobian"`
}

// Params is a free form parameter section. Each architecture reads the keys it knows.
type Params map[string]any

// LoadConfig reads and validates the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(reenact.ErrConfiguration, "could not read the config file: %v", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(reenact.ErrConfiguration, "could not decode the config: %v", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	mp := c.ModelParams
	missing := func(key string) error {
		return errors.Wrapf(reenact.ErrConfiguration, "missing key model_params.%s", key)
	}
	switch {
	case mp.CommonParams == nil:
		return missing("common_params")
	case mp.GeneratorParams == nil:
		return missing("generator_params")
	case mp.KPDetectorParams == nil:
		return missing("kp_detector_params")
	case mp.HEEstimatorParams == nil:
		return missing("he_estimator_params")
	}

	common := mp.CommonParams
	if common.NumKP <= 0 {
		return errors.Wrapf(reenact.ErrConfiguration, "common_params.num_kp must be positive, got %d", common.NumKP)
	}
	if common.ImageChannel == 0 {
		common.ImageChannel = 3
	}
	if common.ImageChannel != 3 {
		return errors.Wrapf(reenact.ErrConfiguration, "common_params.image_channel must be 3, got %d", common.ImageChannel)
	}
	return nil
}

// Int returns the integer value of key, or def if the key is absent.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, p.typeError(key, "an integer", v)
}

// Float returns the floating point value of key, or def if the key is absent.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, p.typeError(key, "a number", v)
}

// Bool returns the boolean value of key, or def if the key is absent.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, p.typeError(key, "a boolean", v)
	}
	return b, nil
}

// String returns the string value of key, or def if the key is absent.
func (p Params) String(key string, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", p.typeError(key, "a string", v)
	}
	return s, nil
}

// Sub returns the nested section under key. An absent section is returned empty.
func (p Params) Sub(key string) (Params, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return Params{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, p.typeError(key, "a mapping", v)
	}
	return Params(m), nil
}

func (p Params) typeError(key, want string, got any) error {
	return errors.Wrapf(reenact.ErrConfiguration, "%s should be %s, got %s", key, want, fmt.Sprintf("%T", got))
}
