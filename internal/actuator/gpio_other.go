//go:build !linux

package actuator

import "errors"

// errNoGPIO is returned when the gpio backend is selected off Linux.
var errNoGPIO = errors.New("gpio backend is not available on this platform")

// openGPIO reports that character-device GPIO is Linux only.
func openGPIO(string, Pins) (*Bank, error) {
	return nil, errNoGPIO
}
