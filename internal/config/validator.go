package config

import "errors"

// Validator validates a resolved Config and fills in any fields a
// partial KDL file left unset.
type Validator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults checks cfg for out-of-range values and applies
// smart defaults for anything left unset by a partial KDL file.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if cfg.Descriptor == "" {
		return errors.New("config: descriptor path cannot be empty")
	}
	if cfg.DefaultPageSize < 0 {
		return errors.New("config: page_size cannot be negative")
	}
	if cfg.DefaultContextLen < 0 {
		return errors.New("config: context_len cannot be negative")
	}
	if cfg.SuggestThreshold < 0 || cfg.SuggestThreshold > 1 {
		return errors.New("config: suggest threshold must be within [0,1]")
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.DefaultPageSize == 0 {
		cfg.DefaultPageSize = 25
	}
	if cfg.DefaultContextLen == 0 {
		cfg.DefaultContextLen = 25
	}
	if cfg.DefaultContextLen > 100 {
		cfg.DefaultContextLen = 100
	}
	if cfg.SuggestThreshold == 0 {
		cfg.SuggestThreshold = 0.85
	}
}

// ValidateConfig is a convenience function for quick validation.
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
