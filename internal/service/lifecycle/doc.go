// Package lifecycle archives and purges the active detection log.
//
// Operations are serialized and run on one worker goroutine in submission
// order, off the scheduler tick path. An operation that has been accepted runs
// to completion or failure even when the caller stops waiting.
package lifecycle
