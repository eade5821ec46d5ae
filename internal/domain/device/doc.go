// Package device contains the process-wide record of the actuators: alarm
// and flash configuration, activity flags and the scheduler's phase
// bookkeeping.
//
// State values are plain data. Holder owns the single live State and the
// lock that guards it; the command dispatcher writes configuration and
// activity fields, the actuator scheduler writes phase fields, and readers
// take consistent copies through Snapshot.
package device
