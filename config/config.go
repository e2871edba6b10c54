// Package config owns the geocat configuration: the instance-wide
// options loaded through Viper and the per-source JSON configuration
// blob stored alongside each harvest source.
package config

// Config represents the core geocat configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// HarvestConfig configures the import pipeline
type HarvestConfig struct {
	// AcceptedFormats is the allow-list used to filter which resources
	// survive into the final record. Matching is upper-cased substring.
	AcceptedFormats []string `mapstructure:"accepted_formats"`

	// ValidatorProfiles are the named validation profiles applied to
	// incoming documents (default: iso19139).
	ValidatorProfiles []string `mapstructure:"validator_profiles"`

	// ContinueOnValidationErrors lets the import proceed past schema
	// validation failures. Sources may override this individually.
	ContinueOnValidationErrors bool `mapstructure:"continue_on_validation_errors"`

	// ReindexUnchanged refreshes the record's harvest back-reference
	// when a document is skipped as unchanged.
	ReindexUnchanged bool `mapstructure:"reindex_unchanged"`

	// Actor is the identity recorded as performing catalog mutations.
	Actor string `mapstructure:"actor"`

	// ProbeTimeoutSeconds bounds each map-service capability probe.
	ProbeTimeoutSeconds int `mapstructure:"probe_timeout_seconds"`

	// ProbesPerMinute rate-limits capability probes across the process.
	ProbesPerMinute int `mapstructure:"probes_per_minute"`
}

// DefaultAcceptedFormats mirrors the stock allow-list of GIS, tabular
// and service formats.
var DefaultAcceptedFormats = []string{
	"csv", "xls", "wms", "wfs", "wcs", "sos", "csw",
	"arcims", "arcgis_rest", "shp", "arcgrid", "kml", "zip",
}

// DefaultValidatorProfiles applied when neither the instance config nor
// the source config names any.
var DefaultValidatorProfiles = []string{"iso19139"}

// DefaultActor performs catalog mutations when no actor is configured.
const DefaultActor = "system"
