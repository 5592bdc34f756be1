// Package config provides configuration management for the nbexplode CLI.
//
// Settings are layered with koanf: built-in defaults, then an optional
// nbexplode.yaml, then NBEXPLODE_* environment variables, then flags.
package config

// Config holds all CLI configuration options.
type Config struct {
	Prefix     string `koanf:"prefix"`
	Quiet      bool   `koanf:"quiet"`
	Verbose    bool   `koanf:"verbose"`
	InPlace    bool   `koanf:"inplace"` // accepted, no effect
	Stdout     bool   `koanf:"stdout"`  // accepted, no effect
	PlanFormat string `koanf:"plan_format"`
}

// Plan output formats.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// PlanFormats lists the accepted values of plan_format.
var PlanFormats = []string{FormatTable, FormatMarkdown, FormatJSON, FormatYAML}

// Default configuration values.
const (
	DefaultPrefix     = ""
	DefaultPlanFormat = FormatTable
	EnvPrefix         = "NBEXPLODE_"
)

// configFileNames are searched for in the working directory, in order.
var configFileNames = []string{"nbexplode.yaml", "nbexplode.yml"}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Prefix:     DefaultPrefix,
		PlanFormat: DefaultPlanFormat,
	}
}
