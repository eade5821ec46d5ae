// Package common holds helpers shared by several services.
//
// It provides a lightweight control API client with timeouts and a helper to
// detect the current system actor (user@host) for audit purposes.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
