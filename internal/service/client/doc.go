// Package client implements the homesec-ctl send and status commands.
//
// send pushes one command line to the controller, retrying until the
// controller acknowledges it or the context is canceled. status prints the
// current status message.
package client
