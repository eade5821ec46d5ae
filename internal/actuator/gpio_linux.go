package actuator

import (
	"fmt"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// consumerName labels the requested lines in gpioinfo output.
const consumerName = "homesec"

// gpioOutput is an output line on a GPIO character device.
type gpioOutput struct {
	line *gpiod.Line
}

// Set writes the level to the line.
func (o *gpioOutput) Set(on bool) error {
	value := 0
	if on {
		value = 1
	}

	return o.line.SetValue(value)
}

// Close releases the line.
func (o *gpioOutput) Close() error {
	return o.line.Close()
}

// openGPIO requests every configured line as an output driven low.
func openGPIO(chipName string, pins Pins) (*Bank, error) {
	chip, err := gpiod.NewChip(chipName, gpiod.WithConsumer(consumerName))
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", chipName, err)
	}

	// Lines stay requested after the chip handle is closed.
	defer func() {
		_ = chip.Close()
	}()

	ordered := pins.ordered()
	outs := make([]Output, 0, len(ordered))

	for _, pin := range ordered {
		line, err := chip.RequestLine(pin.offset, gpiod.AsOutput(0))
		if err != nil {
			for _, o := range outs {
				_ = o.Close()
			}

			return nil, fmt.Errorf("request %s line %d: %w", pin.name, pin.offset, err)
		}

		outs = append(outs, &gpioOutput{line: line})
	}

	return bankFrom(outs), nil
}
