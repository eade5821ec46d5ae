// Package mqtt connects the home-security binaries to the MQTT broker.
//
// Handlers are registered per topic before or after Connect and are
// resubscribed on every reconnect. Messages of one subscription are delivered
// in arrival order.
package mqtt
