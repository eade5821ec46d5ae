// Package config defines the settings shared by the controller, the
// ingestor and the commander, and provides helpers to load, validate and
// save them in YAML format.
//
// Validate fills defaults for everything that has one, so a minimal file
// with only a broker URL is enough to start the controller.
package config
