// Package config loads and validates the ingestion daemon configuration.
//
// Configuration is YAML with ${VAR} environment expansion. Defaults are
// applied after parsing and before validation; see defaults.go for the
// full list of default values.
package config
