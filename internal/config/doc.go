// Package config loads the Bookshelf configuration from YAML or TOML and
// supplies defaults matching the historical tool. A Config value is passed
// explicitly to importers and exporters; there is no package-level state.
package config
