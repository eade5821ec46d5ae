// Package sqlitepool opens SQLite connection pools with the pragmas every
// home-security store expects: WAL journaling, a busy timeout and in-memory
// temporary tables.
package sqlitepool
