// Package preflight provides readiness checks for the filesystem paths,
// roster, credentials, and remote endpoints finpod depends on.
//
// The run command calls RunAll without network checks before it takes the
// run lock, so a missing API key or unwritable staging directory stops the
// run before any unit is touched. "finpod check" runs the same list plus
// endpoint reachability and prints the results.
package preflight
