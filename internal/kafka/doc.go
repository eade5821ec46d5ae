// Package kafka forwards ingested detections to Kafka.
//
// Accepted records go to the main topic keyed by object class; alerts that
// fail to parse go to the dead-letter topic wrapped in an envelope with the
// parse error.
package kafka
