package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "geocat.db")

	// Harvest pipeline defaults
	v.SetDefault("harvest.accepted_formats", DefaultAcceptedFormats)
	v.SetDefault("harvest.validator_profiles", DefaultValidatorProfiles)
	v.SetDefault("harvest.continue_on_validation_errors", false)
	v.SetDefault("harvest.reindex_unchanged", true)
	v.SetDefault("harvest.actor", DefaultActor)
	v.SetDefault("harvest.probe_timeout_seconds", 10)
	v.SetDefault("harvest.probes_per_minute", 30)
}
