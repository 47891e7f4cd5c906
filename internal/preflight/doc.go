// Package preflight provides readiness checks for the filesystem, database
// and credentials templateflow depends on.
//
// These checks run in two contexts:
//   - The daemon runner calls RunAll before serving and refuses to start when
//     a required check fails.
//   - The CLI "templateflow doctor" command prints every result.
package preflight
