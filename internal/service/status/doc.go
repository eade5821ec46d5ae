// Package status renders the device state and the log counts into the status message.
package status
