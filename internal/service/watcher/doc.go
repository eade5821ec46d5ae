// Package watcher implements homesec-ctl watch: it polls the controller
// status at a fixed interval and logs every change.
package watcher
