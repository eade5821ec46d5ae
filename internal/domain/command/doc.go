// Package command parses the text commands received on the command topic
// and over the control API.
//
// The grammar is `<name>[ <key>=<value>]*` with space-separated tokens;
// values may be quoted. Parse never fails: unknown names become
// KindUnknown instructions, and malformed parameters are left unset and
// reported through Instruction.Err so the caller can log them.
package command
