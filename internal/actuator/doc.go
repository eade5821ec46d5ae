// Package actuator drives the physical outputs of the controller: the
// buzzer line and the four lamps of the flash beacon (two red, two blue).
//
// Outputs are opened as a Bank from the actuator settings. The simulated
// backend keeps levels in memory and is used on hosts without GPIO and in
// tests; the gpio backend requests Linux character-device lines.
package actuator
