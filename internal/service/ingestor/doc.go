// Package ingestor writes detection alerts from the alerts topic into the active log.
//
// It honors start and stop on the command topic and can forward accepted
// records and rejected alerts to Kafka.
package ingestor
