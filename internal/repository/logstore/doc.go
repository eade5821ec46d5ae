// Package logstore keeps detection records in two SQLite collections: the
// active log written by the ingestor and the archive log filled by the
// lifecycle manager.
//
// A record lives in exactly one collection. ArchiveBefore moves records in a
// single IMMEDIATE transaction and keys the archive by record ID, so a retried
// move can neither duplicate nor lose a record.
package logstore
