// Command templateflow runs the review-pipeline server and inspects its
// store from the command line.
//
// "templateflow serve" starts the daemon in the foreground. The items,
// billing and doctor commands open the SQLite store directly; WAL mode lets
// them read while the daemon is running.
package main
