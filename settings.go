package meridian

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/meridian/topology"
	"github.com/arloliu/meridian/types"
)

// Settings is the declarative form of a router configuration.
//
// It can be decoded from YAML with LoadSettings or from any
// mapstructure-based loader such as viper.
//
// Example:
//
//	policy: WEIGHT_LOAD_BALANCING
//	failureThreshold: 3
//	maxAttemptsPerDatacenter: 2
//	autoDatacenterFailover: true
//	activeDatacenter: us_east
//	datacenters:
//	  - name: us_east
//	    nodes:
//	      - address: https://10.0.0.1:8082
//	        weight: 2
//	  - name: us_west
//	    nodes:
//	      - address: https://10.1.0.1:8082
type Settings struct {
	Policy                   string             `yaml:"policy" mapstructure:"policy"`
	FailureThreshold         int                `yaml:"failureThreshold" mapstructure:"failureThreshold"`
	MaxAttemptsPerDatacenter int                `yaml:"maxAttemptsPerDatacenter" mapstructure:"maxAttemptsPerDatacenter"`
	AutoDatacenterFailover   bool               `yaml:"autoDatacenterFailover" mapstructure:"autoDatacenterFailover"`
	ActiveDatacenter         string             `yaml:"activeDatacenter" mapstructure:"activeDatacenter"`
	Datacenters              []types.Datacenter `yaml:"datacenters" mapstructure:"datacenters"`
}

// DefaultSettings returns Settings matching DefaultConfig.
func DefaultSettings() Settings {
	return Settings{
		Policy:           string(types.PolicyRoundRobin),
		FailureThreshold: DefaultFailureThreshold,
	}
}

// LoadSettings decodes YAML settings on top of DefaultSettings.
//
// Unknown fields are rejected.
//
// Parameters:
//   - r: YAML document reader
//
// Returns:
//   - Settings: The decoded settings
//   - error: Decode or validation error
func LoadSettings(r io.Reader) (Settings, error) {
	s := DefaultSettings()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("meridian: decode settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	return s, nil
}

// LoadSettingsFile reads settings from a YAML file.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - Settings: The decoded settings
//   - error: Read, decode or validation error
func LoadSettingsFile(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	return LoadSettings(f)
}

// Validate checks the policy name, numeric limits and topology.
//
// Returns:
//   - error: A TopologyConfiguration error or a settings error, or nil
func (s Settings) Validate() error {
	if _, err := types.ParsePolicyKind(s.Policy); err != nil {
		return err
	}
	if s.FailureThreshold < 0 {
		return fmt.Errorf("meridian: failureThreshold must not be negative, got %d", s.FailureThreshold)
	}
	if s.MaxAttemptsPerDatacenter < 0 {
		return fmt.Errorf("meridian: maxAttemptsPerDatacenter must not be negative, got %d", s.MaxAttemptsPerDatacenter)
	}
	if err := topology.Validate(s.Datacenters); err != nil {
		return err
	}
	if s.ActiveDatacenter != "" {
		if err := types.ValidateDatacenterName(s.ActiveDatacenter); err != nil {
			return err
		}
	}

	return nil
}

// Options converts the settings into router options.
//
// Returns:
//   - []Option: Options for NewRouter
//   - error: Error if the policy name is unknown
func (s Settings) Options() ([]Option, error) {
	kind, err := types.ParsePolicyKind(s.Policy)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithPolicy(kind),
		WithMaxAttemptsPerDatacenter(s.MaxAttemptsPerDatacenter),
		WithAutoDatacenterFailover(s.AutoDatacenterFailover),
		WithActiveDatacenter(s.ActiveDatacenter),
	}
	if s.FailureThreshold > 0 {
		opts = append(opts, WithFailureThreshold(s.FailureThreshold))
	}

	return opts, nil
}

// NewRouter builds a router from the settings.
//
// Parameters:
//   - extra: Additional options applied after the settings (logger, metrics, source)
//
// Returns:
//   - *Router: A new router
//   - error: Validation or construction error
func (s Settings) NewRouter(extra ...Option) (*Router, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	opts, err := s.Options()
	if err != nil {
		return nil, err
	}

	return NewRouter(s.Datacenters, append(opts, extra...)...)
}
