// Package detection defines the records kept in the active and archive
// logs and the parser for alerts published by the vision pipeline.
package detection
