// Package scheduler drives the audible and visual actuators from the device state.
//
// A single ticker polls two timer-driven state machines. Neither machine
// sleeps for its own phase length, so a tick never holds the device state
// lock for longer than a few output writes.
package scheduler
