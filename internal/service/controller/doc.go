// Package controller runs the home-security controller process.
//
// Commands from MQTT and from the gRPC control API are parsed and handed to a
// single consumer goroutine, which dispatches them in arrival order. The
// dispatcher is the only writer of device settings and activity flags; the
// scheduler owns the actuator phases.
package controller
