package main

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/arloliu/meridian"
)

func readConfig(v *viper.Viper) error {
	defaults := meridian.DefaultSettings()
	v.SetDefault("policy", defaults.Policy)
	v.SetDefault("failureThreshold", defaults.FailureThreshold)

	cfgFile := v.GetString("config")
	if cfgFile == "" {
		return nil
	}

	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", cfgFile, err)
	}

	return nil
}

// loadSettings decodes the merged file, environment and flag values.
//
// Environment variables use the upper-cased settings key, for example
// MERIDIAN_FAILURETHRESHOLD or MERIDIAN_ACTIVEDATACENTER.
func loadSettings(v *viper.Viper) (meridian.Settings, error) {
	s := meridian.DefaultSettings()
	if err := v.Unmarshal(&s); err != nil {
		return meridian.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	if len(s.Datacenters) == 0 {
		return meridian.Settings{}, errors.New("no datacenters configured, use --config")
	}
	if err := s.Validate(); err != nil {
		return meridian.Settings{}, err
	}

	return s, nil
}
