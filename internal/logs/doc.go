// Package logs reads the daemon's JSON log file for the CLI.
//
// It returns the last N lines with bounded memory, follows appended lines by
// polling from a byte offset, and parses records so callers can filter by
// item, identity, component or level before rendering them in the console
// layout the daemon uses on stdout.
package logs
